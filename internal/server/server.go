package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lazypower/pulse/internal/economy"
	"github.com/lazypower/pulse/internal/governance"
	"github.com/lazypower/pulse/internal/kernel"
	"github.com/lazypower/pulse/internal/social"
	"github.com/lazypower/pulse/internal/store"
)

// Server is the pulse HTTP API server.
type Server struct {
	db      *store.DB
	kernel  *kernel.Kernel
	gov     *governance.Service
	eco     *economy.Service
	soc     *social.Service
	router  chi.Router
	version string
	started time.Time
}

// New creates a new Server over an initialized kernel.
func New(k *kernel.Kernel, version string) *Server {
	s := &Server{
		db:      k.DB(),
		kernel:  k,
		gov:     governance.New(k),
		eco:     economy.New(k),
		soc:     social.New(k),
		version: version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/identity", s.handleCreateIdentity)
		r.Post("/identity/recover", s.handleRecoverIdentity)
		r.Get("/identity", s.handleCurrentIdentity)
		r.Post("/identity/logout", s.handleLogout)

		r.Post("/pulses", s.handleEmitPulse)
		r.Get("/pulses", s.handleGetPulses)
		r.Get("/pulses/global", s.handleGlobalPulses)
		r.Get("/pulses/verify", s.handleVerifyChain)

		r.Get("/leaderboard", s.handleLeaderboard)
		r.Get("/stats", s.handleStats)
		r.Get("/export", s.handleExport)
		r.Post("/reset", s.handleReset)

		r.Post("/keys", s.handleCreateKey)
		r.Get("/keys", s.handleGetKeys)
		r.Post("/keys/{keyID}/revoke", s.handleRevokeKey)

		r.Post("/agents", s.handleSpawnAgent)
		r.Get("/agents", s.handleGetAgents)
		r.Post("/agents/{agentID}/checkpoint", s.handleCheckpointAgent)
		r.Post("/agents/{agentID}/terminate", s.handleTerminateAgent)

		r.Post("/proposals", s.handleCreateProposal)
		r.Get("/proposals", s.handleGetProposals)
		r.Get("/proposals/{proposalID}", s.handleGetProposal)
		r.Post("/proposals/{proposalID}/votes", s.handleVote)

		r.Post("/stakes", s.handleCreateStake)
		r.Get("/stakes", s.handleGetStakes)
		r.Post("/stakes/{stakeID}/unlock", s.handleUnlockStake)

		r.Post("/channels", s.handleCreateChannel)
		r.Get("/channels", s.handleGetChannels)
		r.Post("/channels/{channelID}/join", s.handleJoinChannel)
		r.Post("/channels/{channelID}/messages", s.handleSendMessage)
		r.Get("/channels/{channelID}/messages", s.handleGetMessages)

		r.Post("/feed", s.handleCreatePost)
		r.Get("/feed", s.handleGetFeed)
		r.Post("/feed/{postID}/reactions", s.handleReact)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.Ping(); err != nil {
		dbOK = false
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps kernel sentinel errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, kernel.ErrNoActiveIdentity):
		status = http.StatusUnauthorized
	case errors.Is(err, kernel.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, kernel.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, kernel.ErrAlreadyDone):
		status = http.StatusConflict
	case errors.Is(err, kernel.ErrExpired), errors.Is(err, economy.ErrNotMatured):
		status = http.StatusGone
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return false
	}
	return true
}
