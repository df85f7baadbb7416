package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/mykcryptodev/football-onchain/pkg/pickem"
	"github.com/mykcryptodev/football-onchain/pkg/settlement"
	"github.com/mykcryptodev/football-onchain/pkg/settlement/metrics"
	"github.com/mykcryptodev/football-onchain/pkg/stream"
)

type server struct {
	orch    *settlement.Orchestrator
	hub     *stream.Hub
	m       *metrics.EngineMetrics
	log     zerolog.Logger
	chainID int64
}

func newRouter(s *server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.m.Registry(), promhttp.HandlerOpts{}))
	r.Get("/ws", s.hub.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Route("/contests/{chainID}", func(r chi.Router) {
			r.Get("/", s.handleContestList)
			r.Route("/{contestID}", func(r chi.Router) {
				r.Get("/", s.handleContest)
				r.Get("/winners", s.handleWinners)
				r.Post("/refresh", s.handleRefresh)
			})
		})
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", s.handleGameDetails)
			r.Get("/score", s.handleGameScore)
		})
		r.Post("/pickem/standings", s.handleStandings)
	})

	return r
}

// handleContestList serves every contest. The list changes with each box
// claim, so it is explicitly uncacheable at the HTTP layer.
func (s *server) handleContestList(w http.ResponseWriter, r *http.Request) {
	if !s.checkChain(w, r) {
		return
	}

	contests, err := s.orch.Contests(r.Context())
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"contests": contests})
}

func (s *server) handleContest(w http.ResponseWriter, r *http.Request) {
	if !s.checkChain(w, r) {
		return
	}
	contestID, ok := s.pathInt64(w, r, "contestID")
	if !ok {
		return
	}

	contest, err := s.orch.Contest(r.Context(), contestID)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondJSON(w, http.StatusOK, contest)
}

func (s *server) handleWinners(w http.ResponseWriter, r *http.Request) {
	if !s.checkChain(w, r) {
		return
	}
	contestID, ok := s.pathInt64(w, r, "contestID")
	if !ok {
		return
	}

	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	view, err := s.orch.WinnersPage(r.Context(), contestID, page)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondJSON(w, http.StatusOK, view)
}

func (s *server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if !s.checkChain(w, r) {
		return
	}
	contestID, ok := s.pathInt64(w, r, "contestID")
	if !ok {
		return
	}

	refreshID := s.orch.Refresh(r.Context(), contestID)
	s.hub.BroadcastRefresh(contestID, refreshID)
	s.respondJSON(w, http.StatusAccepted, map[string]string{"refreshId": refreshID})
}

func (s *server) handleGameDetails(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		s.respondError(w, http.StatusBadRequest, errBadParam("gameID"))
		return
	}

	details, err := s.orch.GameDetails(r.Context(), gameID)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondJSON(w, http.StatusOK, details)
}

func (s *server) handleGameScore(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if gameID == "" {
		s.respondError(w, http.StatusBadRequest, errBadParam("gameID"))
		return
	}

	score, err := s.orch.GameScore(r.Context(), gameID)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondJSON(w, http.StatusOK, score)
}

type standingsRequest struct {
	GameIDs []string       `json:"gameIds"`
	Entries []pickem.Entry `json:"entries"`
}

func (s *server) handleStandings(w http.ResponseWriter, r *http.Request) {
	var req standingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, err)
		return
	}

	ranked, err := s.orch.Standings(r.Context(), req.GameIDs, req.Entries)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"standings": ranked})
}

// checkChain rejects requests for chains this daemon is not bound to.
func (s *server) checkChain(w http.ResponseWriter, r *http.Request) bool {
	raw := chi.URLParam(r, "chainID")
	chainID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || chainID != s.chainID {
		http.NotFound(w, r)
		return false
	}
	return true
}

func (s *server) pathInt64(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || v < 0 {
		s.respondError(w, http.StatusBadRequest, errBadParam(name))
		return 0, false
	}
	return v, true
}

type errBadParam string

func (e errBadParam) Error() string { return "invalid " + string(e) + " parameter" }

func (s *server) respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("response encode failed")
	}
}

func (s *server) respondError(w http.ResponseWriter, status int, err error) {
	s.log.Warn().Err(err).Int("status", status).Msg("request failed")
	s.respondJSON(w, status, map[string]string{"error": err.Error()})
}
