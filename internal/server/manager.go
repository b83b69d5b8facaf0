package server

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/replay"
	"github.com/candlelab/replay/internal/replay/datasource"
	"github.com/candlelab/replay/internal/replay/signal"
	"github.com/candlelab/replay/internal/replay/sink"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

// Manager owns the set of live replay runs. Each run's playback loop gets
// its own goroutine and cancel handle.
type Manager struct {
	log *logger.Logger

	mu      sync.RWMutex
	replays map[string]*runHandle
}

type runHandle struct {
	controller *replay.Controller
	cancel     context.CancelFunc
}

// NewManager creates an empty run registry.
func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		log:     log,
		mu:      sync.RWMutex{},
		replays: make(map[string]*runHandle),
	}
}

// Start registers a new replay and launches its playback loop. The sink
// receives snapshots as usual; the returned controller accepts commands
// immediately.
func (m *Manager) Start(config replay.Config, source datasource.CandleSource, provider signal.Provider, out sink.Sink, opts ...replay.ControllerOption) (*replay.Controller, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	controller := replay.NewController(config, source, provider, out, m.log, opts...)

	ctx, cancel := context.WithCancel(context.Background())

	m.mu.Lock()
	m.replays[controller.RunID()] = &runHandle{controller: controller, cancel: cancel}
	m.mu.Unlock()

	go func() {
		defer source.Close()

		if err := controller.Run(ctx); err != nil {
			m.log.Error("Replay run failed",
				zap.String("run_id", controller.RunID()),
				zap.Error(err),
			)
		}
	}()

	m.log.Info("Replay registered", zap.String("run_id", controller.RunID()))

	return controller, nil
}

// Get returns the controller for a run id.
func (m *Manager) Get(id string) (*replay.Controller, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	handle, ok := m.replays[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeReplayNotFound, "replay %s not found", id)
	}

	return handle.controller, nil
}

// List returns the latest snapshot of every registered run.
func (m *Manager) List() []types.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshots := make([]types.Snapshot, 0, len(m.replays))
	for _, handle := range m.replays {
		snapshots = append(snapshots, handle.controller.Snapshot())
	}

	return snapshots
}

// StopAll cancels every live run and waits for the loops to exit.
func (m *Manager) StopAll() {
	m.mu.Lock()
	handles := make([]*runHandle, 0, len(m.replays))

	for _, handle := range m.replays {
		handles = append(handles, handle)
	}
	m.mu.Unlock()

	for _, handle := range handles {
		handle.cancel()
		<-handle.controller.Done()
	}
}
