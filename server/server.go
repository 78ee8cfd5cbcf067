// Package server exposes the document Q&A endpoint. The handler is a thin
// layer: parse the request, hand it to the answerer, clamp and return the
// answer. All state lives with the caller or the provider-side cache.
package server

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"

	"github.com/chapterhouse/docbot/pkg/llm"
)

// Answerer produces an answer to a question given the conversation so far.
// It also exposes the context cache it answers from, for inspection.
type Answerer interface {
	Answer(ctx context.Context, question string, history []llm.Message) (string, error)
	CacheInfo() *llm.CacheInfo
}

// Server is the HTTP front for one Answerer.
type Server struct {
	config   Config
	answerer Answerer
	logger   *zap.Logger
	app      *fiber.App
}

// New creates a Server with its routes registered.
func New(config Config, answerer Answerer, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	// All origins are permitted on this endpoint
	app.Use(cors.New())

	s := &Server{
		config:   config,
		answerer: answerer,
		logger:   logger,
		app:      app,
	}

	app.Get("/", s.handleHealth)
	app.Post("/", s.handleAsk)

	// Cache inspection endpoint
	app.Get("/cache", s.handleCacheInfo)

	return s
}

// Run starts the server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting server", zap.String("listen", s.config.ListenAddr))
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleHealth answers liveness probes.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.SendString("OK")
}

// handleAsk answers one question against the cached reference document.
// The conversation history arrives in full with every request; nothing is
// kept between calls.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.AskRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		s.logger.Error("failed to parse request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	if strings.TrimSpace(req.Question) == "" {
		s.logger.Warn("request without a question")
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "question is required"})
	}

	s.logger.Info("received question",
		zap.String("question", truncate(req.Question, 200)),
		zap.Int("history_turns", len(req.Messages)),
	)

	answer, err := s.answerer.Answer(c.Context(), req.Question, req.Messages)
	if err != nil {
		// Detail stays in the log; callers get a generic message
		s.logger.Error("failed to answer question",
			zap.String("question", truncate(req.Question, 200)),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{
			Error: "could not answer the question, please try again",
		})
	}

	answer = llm.ClampAnswer(answer)

	s.logger.Info("answered question",
		zap.String("answer_preview", truncate(answer, 200)),
		zap.Duration("duration", time.Since(startTime)),
	)

	return c.JSON(llm.AskResponse{Answer: answer})
}

// handleCacheInfo returns metadata about the resolved context cache.
func (s *Server) handleCacheInfo(c *fiber.Ctx) error {
	info := s.answerer.CacheInfo()
	if info == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(llm.ErrorResponse{Error: "context cache not resolved"})
	}
	return c.JSON(info)
}

// truncate shortens a log preview without splitting multi-byte characters.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}
