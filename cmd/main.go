package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/mxbl/grimoire/internal/types"
	"github.com/mxbl/grimoire/pkg/config"
	"github.com/mxbl/grimoire/pkg/llm"
	"github.com/mxbl/grimoire/pkg/rerank"
	"github.com/mxbl/grimoire/pkg/retriever"
	"github.com/mxbl/grimoire/pkg/scraper"
	"github.com/mxbl/grimoire/pkg/source"
	"github.com/mxbl/grimoire/pkg/splitter"
	"github.com/mxbl/grimoire/pkg/store"
)

type options struct {
	configPath string
	kb         string
	mode       string
	ingest     string
	url        string
	list       bool
	deleteKB   string
	verbose    bool
}

func main() {
	godotenv.Load()

	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.kb, "kb", "default", "Knowledge base name(s), comma separated")
	flag.StringVar(&opts.mode, "mode", "", "Retrieval mode: standard, reranker or multiquery")
	flag.StringVar(&opts.ingest, "ingest", "", "File(s) to ingest, comma separated")
	flag.StringVar(&opts.url, "url", "", "Documentation URL to scrape and ingest")
	flag.BoolVar(&opts.list, "list", false, "List knowledge bases and exit")
	flag.StringVar(&opts.deleteKB, "delete", "", "Delete the named knowledge base and exit")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if err := run(opts); err != nil {
		log.Fatal(err)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("items"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func run(opts options) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %v", e)
		}
		return fmt.Errorf("invalid configuration")
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	mode := cfg.Retrieval.Mode
	if opts.mode != "" {
		mode = opts.mode
	}
	retrievalMode, err := retriever.ParseMode(mode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	manager, err := store.NewManager(ctx, store.ManagerConfig{
		Backend:    cfg.Store.Backend,
		DataDir:    cfg.Store.DataDir,
		ConnString: cfg.Store.DatabaseURL,
		TableName:  cfg.Store.TableName,
		VectorDim:  cfg.Store.VectorDim,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer manager.Close()

	var split types.Splitter
	switch cfg.Splitter.Strategy {
	case "fixed":
		split, err = splitter.NewFixed(splitter.Config{
			ChunkSize: cfg.Splitter.ChunkSize,
			Overlap:   cfg.Splitter.ChunkOverlap,
		})
	default:
		split, err = splitter.NewRecursive(splitter.Config{
			ChunkSize: cfg.Splitter.ChunkSize,
			Overlap:   cfg.Splitter.ChunkOverlap,
		})
	}
	if err != nil {
		return fmt.Errorf("failed to initialize splitter: %w", err)
	}

	var embedder types.Embedder
	if cfg.Embedder.Provider == "openai" {
		embedder = llm.NewOpenAIEmbedder(llm.OpenAIEmbedderConfig{
			APIKey:  cfg.Embedder.APIKey,
			BaseURL: cfg.Embedder.BaseURL,
			Model:   cfg.Embedder.Model,
		}, logger)
	} else {
		embedder, err = llm.NewOllamaEmbedder(llm.EmbedderConfig{
			Model:   cfg.Embedder.Model,
			BaseURL: cfg.Embedder.BaseURL,
			Timeout: time.Duration(cfg.Embedder.TimeoutSeconds) * time.Second,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	reranker, err := rerank.New(rerank.Config{
		Model:         cfg.Retrieval.RerankModel,
		BaseURL:       cfg.LLM.BaseURL,
		ContextLength: cfg.Retrieval.ContextLength,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize reranker: %w", err)
	}

	var expander types.Expander = retriever.NewHeuristicExpander()
	if model, err := ollama.New(
		ollama.WithModel(cfg.LLM.Model),
		ollama.WithServerURL(cfg.LLM.BaseURL),
	); err == nil {
		expander = retriever.NewLLMExpander(model, logger)
	}

	engine := retriever.NewEngine(split, embedder, manager, reranker, expander, retriever.Config{
		SearchLimit:    cfg.Retrieval.SearchLimit,
		MinScore:       cfg.Retrieval.MinScore,
		RerankMinScore: cfg.Retrieval.RerankMinScore,
	}, logger)

	chatEngine, err := llm.NewChatEngine(llm.ChatConfig{
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	kbs := strings.Split(opts.kb, ",")
	for i := range kbs {
		kbs[i] = strings.TrimSpace(kbs[i])
	}

	// One-shot management commands
	if opts.list {
		names, err := engine.Indexes(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			color.Yellow("No knowledge bases found")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}
	if opts.deleteKB != "" {
		if err := engine.DeleteIndex(ctx, opts.deleteKB); err != nil {
			return err
		}
		color.Green("✓ Deleted knowledge base %s", opts.deleteKB)
		return nil
	}

	if opts.ingest != "" {
		paths := strings.Split(opts.ingest, ",")
		bar := getProgressBar(len(paths), " Ingesting files...")
		for _, path := range paths {
			doc, err := source.ReadFile(strings.TrimSpace(path))
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			chunks, err := engine.Ingest(ctx, kbs[0], doc.Name, doc.Content)
			if err != nil {
				return fmt.Errorf("failed to ingest %s: %w", path, err)
			}
			bar.Add(1)
			logger.Info("ingested file", "file", doc.Name, "chunks", len(chunks))
		}
		bar.Finish()
		color.Green("\n✓ Ingested %d file(s) into %s\n", len(paths), kbs[0])
	}

	if opts.url != "" {
		if err := scrapeAndIngest(ctx, engine, cfg, kbs[0], opts.url); err != nil {
			return err
		}
	}

	// Interactive chat loop with colored output
	color.Cyan("\nChat with your knowledge base (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()
	urlRegex := regexp.MustCompile(`https?://[^\s]+`)

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		query := scanner.Text()
		if strings.ToLower(strings.TrimSpace(query)) == "exit" {
			break
		}

		// A pasted URL means "scrape and ingest this"
		if url := urlRegex.FindString(query); url != "" {
			if err := scrapeAndIngest(ctx, engine, cfg, kbs[0], url); err != nil {
				color.Red("Failed to ingest %s: %v\n", url, err)
			}
			if strings.TrimSpace(query) == url {
				continue
			}
		}

		querySpinner := getSpinner(" Searching knowledge base...")
		chunks, err := engine.Retrieve(ctx, query, retrievalMode, kbs...)
		querySpinner.Finish()
		fmt.Print("\r")

		if err != nil {
			color.Red("Error retrieving documents: %v\n", err)
			continue
		}

		if cfg.UI.Streaming {
			stream, err := chatEngine.ChatStream(ctx, query, chunks)
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}

			fmt.Print("\n")
			assistantPrompt("Assistant: ")
			for piece := range stream {
				fmt.Print(piece)
			}
			fmt.Print("\n")
		} else {
			responseSpinner := getSpinner(" Generating response...")
			response, err := chatEngine.Chat(ctx, query, chunks)
			responseSpinner.Finish()
			fmt.Print("\r")

			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			assistantPrompt("\nAssistant: %s\n", response)
		}

		if sources := llm.FormatSources(chunks); sources != "" {
			color.Yellow("\n%s\n", sources)
		}
	}

	return nil
}

func scrapeAndIngest(ctx context.Context, engine *retriever.Engine, cfg *config.Config, kb, url string) error {
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	color.Blue("\nScraping %s", url)

	var scrapedCount int32
	s := scraper.New(scraper.Config{
		MaxDepth:  cfg.Scraper.MaxDepth,
		RateLimit: cfg.Scraper.RateLimit,
		OnProgress: func(url string) {
			atomic.AddInt32(&scrapedCount, 1)
		},
	})

	scrapingBar := getProgressBar(-1, " Scraping documentation...")
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case <-time.After(100 * time.Millisecond):
				scrapingBar.Set(int(atomic.LoadInt32(&scrapedCount)))
			}
		}
	}()

	docs, err := s.Scrape(ctx, url)
	close(done)
	scrapingBar.Finish()
	if err != nil {
		return fmt.Errorf("failed to scrape %s: %w", url, err)
	}
	color.Green("\n✓ Scraped %d pages\n", len(docs))

	ingestBar := getProgressBar(len(docs), " Indexing pages...")
	total := 0
	for _, doc := range docs {
		chunks, err := engine.Ingest(ctx, kb, doc.Name, doc.Content)
		if err != nil {
			return fmt.Errorf("failed to ingest %s: %w", doc.Name, err)
		}
		total += len(chunks)
		ingestBar.Add(1)
	}
	ingestBar.Finish()
	color.Green("\n✓ Indexed %d chunks into %s\n", total, kb)
	return nil
}
