// Package server exposes the retrieval engine over a WebSocket bridge:
// ingestion, retrieval-backed chat and knowledge-base management as JSON
// messages, with streamed answers and scrape progress pushed to the
// client.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/mxbl/grimoire/pkg/llm"
	"github.com/mxbl/grimoire/pkg/retriever"
	"github.com/mxbl/grimoire/pkg/scraper"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Be careful with this in production
	},
}

var urlRegex = regexp.MustCompile(`https?://[^\s]+`)

// Message is the frame exchanged in both directions. Incoming types are
// chat, ingest, list and delete; outgoing types are status, progress,
// stream, response, sources, bases and error.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	KB      string      `json:"kb,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Config struct {
	DefaultKB string
	Mode      retriever.Mode
	Streaming bool
	MaxDepth  int
	RateLimit float64
}

type WSServer struct {
	config     Config
	engine     *retriever.Engine
	chatEngine *llm.ChatEngine
	logger     *slog.Logger
}

func NewWSServer(config Config, engine *retriever.Engine, chatEngine *llm.ChatEngine, logger *slog.Logger) *WSServer {
	if config.DefaultKB == "" {
		config.DefaultKB = "default"
	}
	if config.Mode == "" {
		config.Mode = retriever.ModeStandard
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 3
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2.0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WSServer{
		config:     config,
		engine:     engine,
		chatEngine: chatEngine,
		logger:     logger,
	}
}

// Handler returns the HTTP handler with the WebSocket endpoint at /ws
// and a health check at /health.
func (s *WSServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *WSServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// Messages are handled sequentially so only one goroutine writes to
	// the connection.
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("invalid message: %v", err))
			continue
		}

		s.handleMessage(r.Context(), conn, msg)
	}
}

func (s *WSServer) handleMessage(ctx context.Context, conn *websocket.Conn, msg Message) {
	kb := msg.KB
	if kb == "" {
		kb = s.config.DefaultKB
	}

	switch msg.Type {
	case "chat":
		s.handleChat(ctx, conn, kb, msg.Content)
	case "ingest":
		s.handleIngest(ctx, conn, kb, msg.Content)
	case "list":
		names, err := s.engine.Indexes(ctx)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("failed to list knowledge bases: %v", err))
			return
		}
		s.send(conn, Message{Type: "bases", Data: names})
	case "delete":
		if err := s.engine.DeleteIndex(ctx, msg.Content); err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("failed to delete %s: %v", msg.Content, err))
			return
		}
		s.sendMessage(conn, "status", fmt.Sprintf("Deleted knowledge base %s", msg.Content))
	default:
		s.sendMessage(conn, "error", fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (s *WSServer) handleChat(ctx context.Context, conn *websocket.Conn, kb, query string) {
	// A pasted URL means "scrape and ingest this"
	if url := urlRegex.FindString(query); url != "" {
		s.handleIngest(ctx, conn, kb, url)
		if strings.TrimSpace(query) == url {
			return
		}
	}

	chunks, err := s.engine.Retrieve(ctx, query, s.config.Mode, kb)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("retrieval failed: %v", err))
		return
	}

	if s.config.Streaming {
		stream, err := s.chatEngine.ChatStream(ctx, query, chunks)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("chat failed: %v", err))
			return
		}
		for piece := range stream {
			s.sendMessage(conn, "stream", piece)
		}
		s.sendMessage(conn, "response", "")
	} else {
		response, err := s.chatEngine.Chat(ctx, query, chunks)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("chat failed: %v", err))
			return
		}
		s.sendMessage(conn, "response", response)
	}

	if sources := llm.FormatSources(chunks); sources != "" {
		s.sendMessage(conn, "sources", sources)
	}
}

func (s *WSServer) handleIngest(ctx context.Context, conn *websocket.Conn, kb, url string) {
	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	s.sendMessage(conn, "status", fmt.Sprintf("Scraping %s", url))

	var scrapedCount int32
	sc := scraper.New(scraper.Config{
		MaxDepth:  s.config.MaxDepth,
		RateLimit: s.config.RateLimit,
		OnProgress: func(pageURL string) {
			count := atomic.AddInt32(&scrapedCount, 1)
			s.sendMessage(conn, "progress", fmt.Sprintf("Scraped %d pages", count))
		},
	})

	docs, err := sc.Scrape(ctx, url)
	if err != nil {
		s.sendMessage(conn, "error", fmt.Sprintf("failed to scrape %s: %v", url, err))
		return
	}
	s.sendMessage(conn, "status", fmt.Sprintf("Scraped %d pages, indexing", len(docs)))

	total := 0
	for _, doc := range docs {
		chunks, err := s.engine.Ingest(ctx, kb, doc.Name, doc.Content)
		if err != nil {
			s.sendMessage(conn, "error", fmt.Sprintf("failed to ingest %s: %v", doc.Name, err))
			return
		}
		total += len(chunks)
	}
	s.sendMessage(conn, "status", fmt.Sprintf("Indexed %d chunks into %s", total, kb))
}

func (s *WSServer) send(conn *websocket.Conn, msg Message) {
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("websocket write failed", "error", err)
	}
}

func (s *WSServer) sendMessage(conn *websocket.Conn, msgType, content string) {
	s.send(conn, Message{Type: msgType, Content: content})
}
