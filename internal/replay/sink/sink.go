package sink

import (
	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
)

// Sink receives snapshots emitted by the playback loop. Emit must not
// block for long: a slow sink slows the replay, never corrupts it.
type Sink interface {
	// Emit delivers one snapshot. The snapshot is a deep copy and safe to
	// retain.
	Emit(snapshot types.Snapshot)
	// Close signals that no further snapshots will arrive.
	Close() error
}

// LoggerSink writes snapshot summaries to the structured log.
type LoggerSink struct {
	logger *logger.Logger
}

// NewLoggerSink creates a sink that logs each snapshot.
func NewLoggerSink(logger *logger.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Emit implements Sink.
func (s *LoggerSink) Emit(snapshot types.Snapshot) {
	s.logger.Info("Replay snapshot",
		zap.String("run_id", snapshot.RunID),
		zap.String("status", string(snapshot.Status)),
		zap.Int("candle_index", snapshot.CandleIndex),
		zap.Float64("progress_percent", snapshot.ProgressPercent),
		zap.Float64("equity", snapshot.Equity),
		zap.Float64("balance", snapshot.Balance),
		zap.Int("open_positions", len(snapshot.OpenPositions)),
		zap.Int("closed_trades", snapshot.ClosedTrades),
	)
}

// Close implements Sink.
func (s *LoggerSink) Close() error {
	return nil
}

// ChannelSink forwards snapshots to a channel, dropping the oldest pending
// snapshot when the consumer lags. Playback progress is never held hostage
// to a slow reader; the next snapshot supersedes the dropped one anyway.
type ChannelSink struct {
	ch chan types.Snapshot
}

// NewChannelSink creates a channel-backed sink with the given buffer size.
func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{ch: make(chan types.Snapshot, buffer)}
}

// Emit implements Sink.
func (s *ChannelSink) Emit(snapshot types.Snapshot) {
	for {
		select {
		case s.ch <- snapshot:
			return
		default:
		}

		select {
		case <-s.ch:
		default:
		}
	}
}

// Snapshots returns the receive side of the sink.
func (s *ChannelSink) Snapshots() <-chan types.Snapshot {
	return s.ch
}

// Close implements Sink.
func (s *ChannelSink) Close() error {
	close(s.ch)

	return nil
}

// MultiSink fans one snapshot out to several sinks in order.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks into one.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

// Emit implements Sink.
func (s *MultiSink) Emit(snapshot types.Snapshot) {
	for _, sink := range s.sinks {
		sink.Emit(snapshot)
	}
}

// Close implements Sink. All sinks are closed; the first error wins.
func (s *MultiSink) Close() error {
	var firstErr error

	for _, sink := range s.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
