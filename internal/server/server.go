package server

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/replay"
	"github.com/candlelab/replay/internal/replay/datasource"
	"github.com/candlelab/replay/internal/replay/signal"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

// SourceFactory builds the candle source for a newly created replay.
type SourceFactory func(config replay.Config, dataPath string) (datasource.CandleSource, error)

// Server exposes the replay control surface: REST endpoints for lifecycle
// and commands, and a websocket stream of snapshots per run.
type Server struct {
	manager *Manager
	log     *logger.Logger

	httpServer *http.Server
	listener   net.Listener
	upgrader   websocket.Upgrader

	sourceFactory SourceFactory

	mu   sync.Mutex
	hubs map[string]*hub
}

// NewServer creates a server around a run manager. The default source
// factory reads candle files through DuckDB.
func NewServer(manager *Manager, log *logger.Logger) *Server {
	s := &Server{
		manager:    manager,
		log:        log,
		httpServer: nil,
		listener:   nil,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		sourceFactory: nil,
		mu:            sync.Mutex{},
		hubs:          make(map[string]*hub),
	}

	s.sourceFactory = func(config replay.Config, dataPath string) (datasource.CandleSource, error) {
		source, err := datasource.NewDuckDBSource(":memory:", config.Symbol, log)
		if err != nil {
			return nil, err
		}

		if err := source.Initialize(dataPath); err != nil {
			source.Close()

			return nil, err
		}

		return source, nil
	}

	return s
}

// SetSourceFactory overrides how candle sources are built. Tests inject
// in-memory sources here.
func (s *Server) SetSourceFactory(factory SourceFactory) {
	s.sourceFactory = factory
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/api/v1/replays", s.handleCreateReplay).Methods("POST")
	router.HandleFunc("/api/v1/replays", s.handleListReplays).Methods("GET")
	router.HandleFunc("/api/v1/replays/{id}", s.handleGetReplay).Methods("GET")
	router.HandleFunc("/api/v1/replays/{id}/command", s.handleCommand).Methods("POST")
	router.HandleFunc("/api/v1/replays/{id}/stats", s.handleStats).Methods("GET")
	router.HandleFunc("/api/v1/replays/{id}/ws", s.handleWebSocket)

	return router
}

// Start listens on the given address. ":0" picks a free port.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(errors.ErrCodeServerInitFailed, "failed to create listener", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.log.Error("HTTP server error", zap.Error(err))
		}
	}()

	s.log.Info("Replay server listening", zap.String("address", s.Address()))

	return nil
}

// Stop shuts down the server and every live replay.
func (s *Server) Stop() error {
	s.manager.StopAll()

	s.mu.Lock()
	for _, h := range s.hubs {
		h.Close()
	}

	s.hubs = make(map[string]*hub)
	s.mu.Unlock()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Address returns the listen address.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the http base URL of the server.
func (s *Server) BaseURL() string {
	return "http://" + s.Address()
}

// CreateReplayRequest is the POST /api/v1/replays body.
type CreateReplayRequest struct {
	// Config carries the run configuration. Omitted fields fall back to
	// defaults.
	Config json.RawMessage `json:"config"`
	// DataPath points at the candle file (CSV or Parquet).
	DataPath string `json:"data_path"`
	// Signals optionally scripts entry signals for the run.
	Signals []types.Signal `json:"signals,omitempty"`
	// Streaming enables wall-clock pacing between candles.
	Streaming bool `json:"streaming,omitempty"`
}

func (s *Server) handleCreateReplay(w http.ResponseWriter, r *http.Request) {
	var req CreateReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeRequestBodyInvalid, "failed to decode request body", err))

		return
	}

	config := replay.DefaultConfig()
	if len(req.Config) > 0 {
		if err := json.Unmarshal(req.Config, &config); err != nil {
			s.writeError(w, errors.Wrap(errors.ErrCodeRequestBodyInvalid, "failed to decode replay config", err))

			return
		}
	}

	if err := config.Validate(); err != nil {
		s.writeError(w, err)

		return
	}

	source, err := s.sourceFactory(config, req.DataPath)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeReplayInitFailed, "failed to build candle source", err))

		return
	}

	var provider signal.Provider
	if len(req.Signals) > 0 {
		provider = signal.NewScriptedProvider(req.Signals)
	} else {
		provider = signal.NewNoopProvider()
	}

	h := newHub(s.log)

	var opts []replay.ControllerOption
	if req.Streaming {
		opts = append(opts, replay.WithStreaming(time.Second))
	}

	controller, err := s.manager.Start(config, source, provider, h, opts...)
	if err != nil {
		source.Close()
		s.writeError(w, err)

		return
	}

	s.mu.Lock()
	s.hubs[controller.RunID()] = h
	s.mu.Unlock()

	s.writeJSON(w, http.StatusCreated, controller.Snapshot())
}

func (s *Server) handleListReplays(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.manager.List())
}

func (s *Server) handleGetReplay(w http.ResponseWriter, r *http.Request) {
	controller, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, controller.Snapshot())
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	controller, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, errors.Wrap(errors.ErrCodeRequestBodyInvalid, "failed to read request body", err))

		return
	}

	cmd, err := replay.ParseCommand(body)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if err := controller.Send(cmd); err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	controller, err := s.manager.Get(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, err)

		return
	}

	report := controller.Report()

	// JSON has no +Inf; clamp the zero-loss profit factor sentinel.
	if math.IsInf(report.Trade.ProfitFactor, 1) {
		report.Trade.ProfitFactor = math.MaxFloat64
	}

	s.writeJSON(w, http.StatusOK, report)
}

// handleWebSocket streams snapshots to the client and accepts command JSON
// on the same connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	controller, err := s.manager.Get(id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.mu.Lock()
	h, ok := s.hubs[id]
	s.mu.Unlock()

	if !ok {
		s.writeError(w, errors.Newf(errors.ErrCodeReplayNotFound, "replay %s has no snapshot stream", id))

		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("Websocket upgrade failed", zap.Error(err))

		return
	}

	// Seed the subscriber before registering it with the hub. Once
	// registered, the hub's emit lock is the only writer on this conn.
	if err := conn.WriteJSON(controller.Snapshot()); err != nil {
		conn.Close()

		return
	}

	h.add(conn)

	defer func() {
		h.remove(conn)
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return
		}

		cmd, err := replay.ParseCommand(message)
		if err != nil {
			s.log.Warn("Invalid websocket command", zap.Error(err))

			continue
		}

		if err := controller.Send(cmd); err != nil {
			s.log.Warn("Websocket command rejected", zap.Error(err))
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to encode response", zap.Error(err))
	}
}

// writeError maps error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch errors.GetCode(err) {
	case errors.ErrCodeReplayNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeInvalidConfiguration, errors.ErrCodeInvalidCommand,
		errors.ErrCodeInvalidSpeed, errors.ErrCodeInvalidSeekIndex,
		errors.ErrCodeRequestBodyInvalid, errors.ErrCodeInvalidVersion:
		status = http.StatusBadRequest
	case errors.ErrCodeReplayTerminated, errors.ErrCodeReplayNotPaused, errors.ErrCodeCommandRejected:
		status = http.StatusConflict
	}

	s.writeJSON(w, status, map[string]any{
		"error": err.Error(),
		"code":  errors.GetCode(err),
	})
}
