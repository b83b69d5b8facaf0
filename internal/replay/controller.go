package replay

import (
	"context"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/replay/datasource"
	"github.com/candlelab/replay/internal/replay/signal"
	"github.com/candlelab/replay/internal/replay/sink"
	"github.com/candlelab/replay/internal/replay/stats"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

// commandBuffer is the size of the pending-command queue. Commands beyond
// it are rejected rather than blocking the sender.
const commandBuffer = 64

// Controller drives one replay run: it owns the playback loop, applies
// control commands at per-candle checkpoints, and publishes snapshots.
//
// The loop goroutine is the only mutator of the run state. Everything the
// outside observes goes through deep-copied snapshots behind a mutex, so
// Pause, Step, Snapshot and friends are safe from any goroutine.
type Controller struct {
	config    Config
	state     *RunState
	simulator *Simulator
	source    datasource.CandleSource
	provider  signal.Provider
	out       sink.Sink
	log       *logger.Logger

	// streaming enables wall-clock pacing between candles. Off, the loop
	// runs as fast as the simulation allows.
	streaming    bool
	baseInterval time.Duration

	commands chan Command
	done     chan struct{}

	mu       sync.Mutex
	latest   types.Snapshot
	closed   []types.Position
	curve    []types.EquityPoint
	finalErr error
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithStreaming enables wall-clock pacing: each candle takes
// baseInterval/speed of real time.
func WithStreaming(baseInterval time.Duration) ControllerOption {
	return func(c *Controller) {
		c.streaming = true
		c.baseInterval = baseInterval
	}
}

// NewController wires a validated config to its collaborators. The config
// must already have passed Validate.
func NewController(config Config, source datasource.CandleSource, provider signal.Provider, out sink.Sink, log *logger.Logger, opts ...ControllerOption) *Controller {
	state := NewRunState(config)

	c := &Controller{
		config:       config,
		state:        state,
		simulator:    NewSimulator(config, state, log),
		source:       source,
		provider:     provider,
		out:          out,
		log:          log,
		streaming:    false,
		baseInterval: time.Second,
		commands:     make(chan Command, commandBuffer),
		done:         make(chan struct{}),
		mu:           sync.Mutex{},
		latest:       types.Snapshot{},
		closed:       nil,
		curve:        nil,
		finalErr:     nil,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.publish(false)

	return c
}

// RunID returns the run's identifier.
func (c *Controller) RunID() string {
	return c.state.RunID
}

// Run executes the playback loop until the candle sequence is exhausted, a
// stop command arrives, the context is cancelled, or a fatal error occurs.
// It must be called exactly once.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)

	count, err := c.source.Count(c.config.StartTime, c.config.EndTime)
	if err != nil {
		return c.fail(errors.Wrap(errors.ErrCodeQueryFailed, "failed to count candles", err))
	}

	if count == 0 {
		return c.fail(errors.New(errors.ErrCodeEmptyCandleSequence, "candle source yielded no candles"))
	}

	c.state.TotalCandles = count

	c.log.Info("Replay starting",
		zap.String("run_id", c.state.RunID),
		zap.String("symbol", c.config.Symbol),
		zap.Int("total_candles", count),
		zap.String("provider", c.provider.Name()),
	)

	for candle, err := range c.source.ReadAll(c.config.StartTime, c.config.EndTime) {
		if err != nil {
			return c.fail(errors.Wrap(errors.ErrCodeQueryFailed, "candle source failed mid-replay", err))
		}

		if !c.checkpoint(ctx) {
			break
		}

		fastForwarding := c.seekPending()

		// Fast-forwarded candles still run through the simulation so open
		// positions exit normally and the equity curve stays contiguous.
		// Only new entries are suppressed.
		var sig optional.Option[types.Signal]
		if !fastForwarding {
			sig = c.provider.Signal(candle)
		} else {
			sig = optional.None[types.Signal]()
		}

		if err := c.simulator.Advance(candle, sig); err != nil {
			if !errors.IsRecoverable(err) {
				return c.fail(err)
			}

			c.log.Warn("Skipping candle",
				zap.Int("candle_index", c.state.CandleIndex),
				zap.Error(err),
			)
		}

		c.state.CandleIndex++

		if c.state.SeekTarget.IsSome() && c.state.CandleIndex >= c.state.SeekTarget.Unwrap() {
			c.log.Info("Seek target reached", zap.Int("candle_index", c.state.CandleIndex))
			c.state.SeekTarget = optional.None[int]()
			fastForwarding = false
		}

		stepped := c.state.StepRequest
		c.state.StepRequest = false

		c.publish(c.state.CandleIndex%c.config.SnapshotInterval == 0)

		if c.streaming && !fastForwarding && !stepped && c.state.Status == types.PlaybackRunning {
			if !c.pace(ctx) {
				break
			}
		}
	}

	c.finish()

	return c.finalErr
}

// checkpoint applies pending commands and blocks while paused. It returns
// false when the loop must exit.
func (c *Controller) checkpoint(ctx context.Context) bool {
	c.drain()

	for {
		if ctx.Err() != nil {
			c.state.Status = types.PlaybackStopped

			return false
		}

		if c.state.Status.Terminal() {
			return false
		}

		if c.state.Status != types.PlaybackPaused {
			return true
		}

		// A paused loop still advances for a pending step or seek.
		if c.state.StepRequest || c.seekPending() {
			return true
		}

		c.publish(true)

		select {
		case cmd := <-c.commands:
			c.apply(cmd)
		case <-ctx.Done():
			c.state.Status = types.PlaybackStopped

			return false
		}
	}
}

// drain applies every command already queued, in arrival order.
func (c *Controller) drain() {
	for {
		select {
		case cmd := <-c.commands:
			c.apply(cmd)
		default:
			return
		}
	}
}

// apply mutates the run state for one command. Invalid transitions are
// logged and ignored; a bad command never kills the replay.
func (c *Controller) apply(cmd Command) {
	switch cmd.Type {
	case CommandPause:
		if c.state.Status == types.PlaybackRunning {
			c.state.Status = types.PlaybackPaused
			c.log.Info("Replay paused", zap.Int("candle_index", c.state.CandleIndex))
		}
	case CommandResume:
		if c.state.Status == types.PlaybackPaused {
			c.state.Status = types.PlaybackRunning
			c.state.StepRequest = false
			c.log.Info("Replay resumed", zap.Int("candle_index", c.state.CandleIndex))
		}
	case CommandStep:
		if c.state.Status == types.PlaybackPaused {
			c.state.StepRequest = true
		} else {
			c.log.Warn("Step ignored: replay is not paused", zap.String("status", string(c.state.Status)))
		}
	case CommandSpeed:
		c.state.Speed = cmd.Speed
		c.log.Info("Playback speed changed", zap.Float64("speed", cmd.Speed))
	case CommandSeek:
		if cmd.Index <= c.state.CandleIndex {
			c.log.Warn("Seek ignored: target is not ahead of current position",
				zap.Int("target", cmd.Index),
				zap.Int("candle_index", c.state.CandleIndex),
			)
		} else {
			c.state.SeekTarget = optional.Some(cmd.Index)
			c.log.Info("Seeking", zap.Int("target", cmd.Index))
		}
	case CommandStop:
		c.state.Status = types.PlaybackStopped
		c.log.Info("Replay stopped by command", zap.Int("candle_index", c.state.CandleIndex))
	}
}

func (c *Controller) seekPending() bool {
	return c.state.SeekTarget.IsSome() && c.state.CandleIndex < c.state.SeekTarget.Unwrap()
}

// pace sleeps baseInterval/speed. Returns false when the context died.
func (c *Controller) pace(ctx context.Context) bool {
	delay := time.Duration(float64(c.baseInterval) / c.state.Speed)

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		c.state.Status = types.PlaybackStopped

		return false
	}
}

// finish settles a loop that ended without a fatal error. Remaining open
// positions are closed at the last seen close so the final report covers
// every trade: as end_of_data when the series ran out, as manual when a
// stop command cut the run short.
func (c *Controller) finish() {
	reason := types.ExitReasonManual

	if c.state.Status != types.PlaybackStopped {
		c.state.Status = types.PlaybackCompleted
		reason = types.ExitReasonEndOfData
	}

	if c.state.OpenCount() > 0 {
		if err := c.simulator.CloseAll(c.state.LastCandle.Close, c.state.CurrentTime, reason); err != nil {
			c.finalErr = err
		}

		c.state.MarkEquity(c.state.CurrentTime, c.state.LastCandle.Close)
	}

	c.publish(true)

	c.log.Info("Replay finished",
		zap.String("run_id", c.state.RunID),
		zap.String("status", string(c.state.Status)),
		zap.Int("candles_processed", c.state.CandleIndex),
		zap.Int("closed_trades", c.state.TotalTrades),
		zap.Float64("final_balance", c.state.Balance),
	)
}

// fail records a fatal error, marks the run stopped, and publishes the
// terminal snapshot.
func (c *Controller) fail(err error) error {
	c.state.Status = types.PlaybackStopped
	c.finalErr = err
	c.publish(true)

	c.log.Error("Replay failed", zap.String("run_id", c.state.RunID), zap.Error(err))

	return err
}

// publish refreshes the observable snapshot and, when emit is set, pushes
// it to the sink along with fresh report inputs.
func (c *Controller) publish(emit bool) {
	snapshot := c.state.Snapshot()

	c.mu.Lock()
	c.latest = snapshot

	if emit {
		c.closed = c.state.ClosedPositions()
		c.curve = c.state.EquityCurveCopy()
	}
	c.mu.Unlock()

	if emit && c.out != nil {
		c.out.Emit(snapshot)
	}
}

// Send validates and enqueues a control command.
func (c *Controller) Send(cmd Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	select {
	case <-c.done:
		return errors.Newf(errors.ErrCodeReplayTerminated, "replay %s has terminated", c.state.RunID)
	default:
	}

	// Seeks are forward-only. The published index never runs ahead of the
	// loop's actual position, so a target at or behind it can never apply.
	if cmd.Type == CommandSeek {
		if index := c.Snapshot().CandleIndex; cmd.Index <= index {
			return errors.Newf(errors.ErrCodeInvalidSeekIndex, "seek target %d is not ahead of candle index %d", cmd.Index, index)
		}
	}

	select {
	case c.commands <- cmd:
		return nil
	default:
		return errors.New(errors.ErrCodeCommandRejected, "command queue is full")
	}
}

// Pause suspends playback at the next checkpoint.
func (c *Controller) Pause() error {
	return c.Send(Command{Type: CommandPause, Speed: 0, Index: 0})
}

// Resume continues a paused replay.
func (c *Controller) Resume() error {
	return c.Send(Command{Type: CommandResume, Speed: 0, Index: 0})
}

// Step advances a paused replay by exactly one candle.
func (c *Controller) Step() error {
	return c.Send(Command{Type: CommandStep, Speed: 0, Index: 0})
}

// SetSpeed changes the streaming pace multiplier.
func (c *Controller) SetSpeed(speed float64) error {
	return c.Send(Command{Type: CommandSpeed, Speed: speed, Index: 0})
}

// Seek fast-forwards to the given candle index. Seeking is forward-only:
// a target at or behind the current position is rejected. The skipped
// candles still flow through the simulation with new entries suppressed.
func (c *Controller) Seek(index int) error {
	return c.Send(Command{Type: CommandSeek, Speed: 0, Index: index})
}

// Stop terminates the replay at the next checkpoint.
func (c *Controller) Stop() error {
	return c.Send(Command{Type: CommandStop, Speed: 0, Index: 0})
}

// Snapshot returns the most recently published snapshot.
func (c *Controller) Snapshot() types.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.latest
}

// Report computes statistics over the trades and equity published so far.
// Safe to call at any time; mid-replay it covers candles processed up to
// the last emitted snapshot.
func (c *Controller) Report() types.ComprehensiveStatistics {
	c.mu.Lock()
	input := stats.Input{
		RunID:           c.state.RunID,
		Symbol:          c.state.Symbol,
		StartingBalance: c.state.StartingBalance,
		Closed:          append([]types.Position(nil), c.closed...),
		EquityCurve:     append([]types.EquityPoint(nil), c.curve...),
	}
	c.mu.Unlock()

	return stats.Compute(input)
}

// Done is closed when the playback loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error of a finished run, if any.
func (c *Controller) Err() error {
	select {
	case <-c.done:
		return c.finalErr
	default:
		return nil
	}
}
