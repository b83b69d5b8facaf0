package signal

import (
	"time"

	"github.com/moznion/go-optional"

	"github.com/candlelab/replay/internal/types"
)

// Provider produces at most one entry signal per candle. Implementations
// must be deterministic: the same candle sequence yields the same signals.
type Provider interface {
	// Name identifies the provider in logs and reports.
	Name() string
	// Signal returns the entry signal for the candle, if any.
	Signal(candle types.Candle) optional.Option[types.Signal]
}

// NoopProvider never signals. A replay driven by it exercises pure
// playback: the equity curve stays flat at the starting balance.
type NoopProvider struct{}

// NewNoopProvider creates a provider that never signals.
func NewNoopProvider() *NoopProvider {
	return &NoopProvider{}
}

// Name implements Provider.
func (p *NoopProvider) Name() string {
	return "noop"
}

// Signal implements Provider.
func (p *NoopProvider) Signal(candle types.Candle) optional.Option[types.Signal] {
	return optional.None[types.Signal]()
}

// ScriptedProvider replays a fixed set of signals keyed by candle time.
// Used to feed recorded strategy output through the simulation.
type ScriptedProvider struct {
	signals map[time.Time]types.Signal
}

// NewScriptedProvider indexes the given signals by their timestamps. When
// two signals share a timestamp the later one wins.
func NewScriptedProvider(signals []types.Signal) *ScriptedProvider {
	indexed := make(map[time.Time]types.Signal, len(signals))
	for _, s := range signals {
		indexed[s.Time.UTC()] = s
	}

	return &ScriptedProvider{signals: indexed}
}

// Name implements Provider.
func (p *ScriptedProvider) Name() string {
	return "scripted"
}

// Signal implements Provider.
func (p *ScriptedProvider) Signal(candle types.Candle) optional.Option[types.Signal] {
	s, ok := p.signals[candle.Time.UTC()]
	if !ok {
		return optional.None[types.Signal]()
	}

	return optional.Some(s)
}
