// Package scraper turns online documentation into source documents for
// ingestion. It crawls same-host links breadth-first up to a configured
// depth, politely rate-limited.
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"github.com/mxbl/grimoire/internal/models"
)

type Config struct {
	MaxDepth          int
	RateLimit         float64 // requests per second
	Timeout           time.Duration
	AllowedExtensions []string
	OnProgress        func(url string)
}

type Scraper struct {
	config  Config
	client  *http.Client
	limiter *rate.Limiter
}

func New(config Config) *Scraper {
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}
	return &Scraper{
		config:  config,
		client:  &http.Client{Timeout: config.Timeout},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// Scrape crawls startURL and same-host pages reachable within MaxDepth
// links, returning one source document per page. Individual page
// failures are skipped; only cancellation aborts the crawl.
func (s *Scraper) Scrape(ctx context.Context, startURL string) ([]models.SourceDocument, error) {
	base, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}

	type target struct {
		url   string
		depth int
	}
	queue := []target{{url: base.String(), depth: 0}}
	visited := map[string]bool{base.String(): true}
	var docs []models.SourceDocument

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		if err := s.limiter.Wait(ctx); err != nil {
			return docs, err
		}

		text, links, err := s.fetch(ctx, next.url)
		if err != nil {
			if ctx.Err() != nil {
				return docs, ctx.Err()
			}
			continue
		}
		if s.config.OnProgress != nil {
			s.config.OnProgress(next.url)
		}
		if text != "" {
			docs = append(docs, models.SourceDocument{Name: next.url, Content: text})
		}

		if next.depth >= s.config.MaxDepth {
			continue
		}
		for _, link := range links {
			resolved := s.resolve(base, link)
			if resolved == "" || visited[resolved] {
				continue
			}
			visited[resolved] = true
			queue = append(queue, target{url: resolved, depth: next.depth + 1})
		}
	}
	return docs, nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", nil, err
	}
	doc.Find("script, style, nav, header, footer").Remove()

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if href, ok := sel.Attr("href"); ok {
			links = append(links, href)
		}
	})

	text := strings.TrimSpace(doc.Find("body").Text())
	// Collapse the whitespace soup HTML extraction leaves behind.
	text = strings.Join(strings.Fields(text), " ")
	return text, links, nil
}

// resolve returns the absolute same-host URL for link, or "" when the
// link leaves the crawl scope.
func (s *Scraper) resolve(base *url.URL, link string) string {
	ref, err := url.Parse(link)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(ref)
	if abs.Host != base.Host || (abs.Scheme != "http" && abs.Scheme != "https") {
		return ""
	}
	abs.Fragment = ""

	path := abs.Path
	allowed := false
	for _, ext := range s.config.AllowedExtensions {
		switch ext {
		case "", "/":
			if path == "" || strings.HasSuffix(path, "/") || !strings.Contains(lastSegment(path), ".") {
				allowed = true
			}
		default:
			if strings.HasSuffix(path, ext) {
				allowed = true
			}
		}
	}
	if !allowed {
		return ""
	}
	return abs.String()
}

func lastSegment(path string) string {
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}
