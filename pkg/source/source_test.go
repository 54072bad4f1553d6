package source_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxbl/grimoire/pkg/source"
)

func TestReadFile_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("some notes"), 0o644))

	doc, err := source.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "notes.txt", doc.Name)
	assert.Equal(t, "some notes", doc.Content)
}

func TestReadFile_Missing(t *testing.T) {
	_, err := source.ReadFile(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestReadFile_BadPDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("not a pdf"), 0o644))

	_, err := source.ReadFile(path)
	assert.Error(t, err)
}
