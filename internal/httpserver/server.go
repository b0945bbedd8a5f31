// internal/httpserver/server.go
//
// HTTP server wiring for the shared grid.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs).
//   - Public endpoints: "/", "/health", "/metrics".
//   - Read-only state endpoints: GET /grid, /history, /online, /participants/{id}.
//   - Debug endpoint: GET /debug/journal (when the journal is enabled).
//   - Websocket gateway: GET /ws (see ws.go).
//
// Notes:
//   - CORS is origin-aware and credentials-enabled for CLIENT_ORIGIN.
//   - The websocket route sits outside the timeout/JSON group; its
//     connection outlives any request deadline.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/gridboard/apps/go-server/internal/game"
	"github.com/robalobadob/gridboard/apps/go-server/internal/grid"
	"github.com/robalobadob/gridboard/apps/go-server/internal/hub"
	"github.com/robalobadob/gridboard/apps/go-server/internal/journal"
	"github.com/robalobadob/gridboard/apps/go-server/internal/metrics"
	"github.com/robalobadob/gridboard/apps/go-server/internal/players"
)

// JournalReader is the read side of the placement journal.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
	Count(ctx context.Context) (int, error)
}

// Deps are the state owners the server fronts. Journal may be nil.
type Deps struct {
	Service *game.Service
	Players *players.Registry
	Hub     *hub.Hub
	Journal JournalReader
}

// Options tune transport behavior. Zero values select defaults.
type Options struct {
	ClientOrigin string        // "*" allows any origin
	WriteTimeout time.Duration // per websocket frame
	PingInterval time.Duration
	Now          func() time.Time
}

// Server bundles router and coordinator dependencies.
type Server struct {
	r        *chi.Mux
	svc      *game.Service
	players  *players.Registry
	hub      *hub.Hub
	journal  JournalReader
	opts     Options
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(deps Deps, opts Options) *Server {
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Server{
		r:       chi.NewRouter(),
		svc:     deps.Service,
		players: deps.Players,
		hub:     deps.Hub,
		journal: deps.Journal,
		opts:    opts,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(s.cors)          // credentials-friendly CORS

	// --- push channel ---
	s.r.Get("/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"service":"gridboard-go","endpoints":["/health","/grid","/history","/online","/participants/{id}","/ws","/metrics"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"ok":true}`))
		})

		// --- state ---
		r.Get("/grid", s.handleGrid)
		r.Get("/history", s.handleHistory)
		r.Get("/online", s.handleOnline)
		r.Get("/participants/{id}", s.handleParticipant)

		// Debug: recent journal rows
		r.Get("/debug/journal", s.handleJournal)
	})

	s.r.Handle("/metrics", metrics.Handler())

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not_found","path":"`+r.URL.Path+`"}`, http.StatusNotFound)
	})

	return s
}

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// HTTPServer returns an http.Server for addr serving this router.
func (s *Server) HTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.opts.ClientOrigin
		if origin == "*" {
			origin = r.Header.Get("Origin")
		}
		if origin != "" {
			w.Header().Set("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin admits non-browser clients (no Origin header) and the
// configured client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.opts.ClientOrigin == "*" {
		return true
	}
	return origin == s.opts.ClientOrigin
}

// ------------------------------- STATE -------------------------------------

// gridRes is the full-state payload for GET /grid.
type gridRes struct {
	Cells   []grid.Cell            `json:"cells"`
	History []grid.PlacementRecord `json:"history"`
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	snap := s.svc.Snapshot()
	_ = json.NewEncoder(w).Encode(gridRes{Cells: snap.Cells, History: snap.History})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{"history": s.svc.History()})
}

func (s *Server) handleOnline(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(hub.OnlinePayload{Count: s.players.OnlineCount()})
}

// participantRes reports pacing and presence for one participant.
// LockedUntil is the authoritative expiry in unix ms (0 if never placed).
type participantRes struct {
	ParticipantID string `json:"participantId"`
	LockedUntil   int64  `json:"lockedUntil"`
	Locked        bool   `json:"locked"`
	Online        bool   `json:"online"`
}

// handleParticipant never registers the id it is asked about.
func (s *Server) handleParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	st, _ := s.players.Peek(id)
	_ = json.NewEncoder(w).Encode(participantRes{
		ParticipantID: id,
		LockedUntil:   st.LockedUntil,
		Locked:        st.LockedAt(s.opts.Now()),
		Online:        st.Online(),
	})
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		http.Error(w, `{"error":"journal_disabled"}`, http.StatusNotFound)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	entries, err := s.journal.Recent(r.Context(), limit)
	if err != nil {
		log.Error().Err(err).Msg("read journal")
		http.Error(w, `{"error":"journal_error"}`, http.StatusInternalServerError)
		return
	}
	total, err := s.journal.Count(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("count journal")
		http.Error(w, `{"error":"journal_error"}`, http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"entries": entries, "total": total})
}
