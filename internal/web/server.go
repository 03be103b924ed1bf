// Package web exposes the panel controller to the local UI over HTTP
// and a websocket state feed.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/blockedby/tg-panel/internal/history"
	"github.com/blockedby/tg-panel/internal/panel"
)

// Config holds server configuration.
type Config struct {
	Port int
}

// Server is the local HTTP surface for the UI.
type Server struct {
	router     *chi.Mux
	httpServer *http.Server
	config     *Config
	listener   net.Listener

	controller *panel.Controller
	store      *history.Store // optional
	hub        *Hub
}

// NewServer wires routes over the controller. The history store may be
// nil; its endpoint then reports an empty list.
func NewServer(cfg *Config, controller *panel.Controller, store *history.Store, hub *Hub) *Server {
	s := &Server{
		router:     chi.NewRouter(),
		config:     cfg,
		controller: controller,
		store:      store,
		hub:        hub,
	}

	s.setupMiddleware()
	s.setupRoutes()

	// every state change pushes a fresh snapshot to the UI
	controller.SetNotifier(func() {
		hub.Broadcast(StateEvent(controller.Snapshot()))
	})

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	s.router.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		ServeWs(s.hub, w, r)
	})

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/history", s.handleHistory)

		r.Post("/join", s.handleJoin)
		r.Post("/leave", s.handleLeave)

		r.Post("/scan", s.handleStartScan)
		r.Delete("/scan", s.handleStopScan)

		r.Post("/search", s.handleStartSearch)
		r.Delete("/search", s.handleStopSearch)

		r.Post("/selection/chat", s.handleSelectChat)
		r.Post("/selection/message", s.handleSelectMessage)
		r.Post("/selection/expand", s.handleExpand)

		r.Post("/delete-selected", s.handleDeleteSelected)
		r.Post("/delete-all", s.handleDeleteAll)
		r.Post("/keep", s.handleKeep)

		r.Post("/queue/clear", s.handleClearQueue)
	})
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.controller.Snapshot())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		respondJSON(w, http.StatusOK, []history.Operation{})
		return
	}
	ops, err := s.store.Recent(r.Context(), s.controller.Snapshot().AccountID, 50)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, ops)
}

func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	found, err := s.controller.JoinFromText(r.Context(), req.Text)
	if err != nil {
		if errors.Is(err, panel.ErrNoLinks) || errors.Is(err, panel.ErrNoAccount) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"links":  found,
		"status": "joining",
	})
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatIDs []string `json:"chat_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	resp, err := s.controller.LeaveGroups(r.Context(), req.ChatIDs)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStartScan(w http.ResponseWriter, r *http.Request) {
	if err := s.controller.StartScan(r.Context()); err != nil {
		if errors.Is(err, panel.ErrScanActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "scanning"})
}

func (s *Server) handleStopScan(w http.ResponseWriter, _ *http.Request) {
	s.controller.StopScan()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleStartSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	if err := s.controller.StartSearch(r.Context(), req.Query); err != nil {
		if errors.Is(err, panel.ErrSearchActive) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "searching"})
}

func (s *Server) handleStopSearch(w http.ResponseWriter, _ *http.Request) {
	s.controller.StopSearch()
	respondJSON(w, http.StatusOK, map[string]string{"status": "stopped"})
}

func (s *Server) handleSelectChat(w http.ResponseWriter, r *http.Request) {
	chatID, ok := decodeChatID(w, r)
	if !ok {
		return
	}
	s.controller.SelectChat(chatID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSelectMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	s.controller.SelectMessage(req.ChatID, req.MessageID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleExpand(w http.ResponseWriter, r *http.Request) {
	chatID, ok := decodeChatID(w, r)
	if !ok {
		return
	}
	s.controller.ToggleExpanded(chatID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDeleteSelected(w http.ResponseWriter, r *http.Request) {
	report, err := s.controller.DeleteSelected(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleDeleteAll(w http.ResponseWriter, r *http.Request) {
	resp, err := s.controller.DeleteAllFound(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleKeep(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID    int64 `json:"chat_id"`
		MessageID int64 `json:"message_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if err := s.controller.KeepMessage(r.Context(), req.ChatID, req.MessageID); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, _ *http.Request) {
	s.controller.ClearQueue()
	respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// Start begins serving. Blocks until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s.httpServer.Serve(listener)
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// BaseURL returns the server's base URL.
func (s *Server) BaseURL() string {
	if s.listener != nil {
		return fmt.Sprintf("http://%s", s.listener.Addr().String())
	}
	return fmt.Sprintf("http://localhost:%d", s.config.Port)
}

// Router exposes the router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}

func decodeChatID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var req struct {
		ChatID int64 `json:"chat_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return 0, false
	}
	return req.ChatID, true
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
