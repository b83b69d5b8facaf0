package main

import (
	"os"
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v2"

	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/pkg/errors"
)

type signalsFile struct {
	Signals []rawSignal `yaml:"signals"`
}

type rawSignal struct {
	Time        time.Time `yaml:"time"`
	Symbol      string    `yaml:"symbol"`
	Direction   string    `yaml:"direction"`
	StopPrice   float64   `yaml:"stop_price"`
	TakeProfits []float64 `yaml:"take_profits"`
	Reason      string    `yaml:"reason"`
}

// LoadSignalsFile reads a scripted signals YAML file and validates every
// signal in it.
func LoadSignalsFile(path string) ([]types.Signal, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSignal, "failed to read signals file", err)
	}

	return ParseSignals(content)
}

// ParseSignals decodes scripted signals from YAML content.
func ParseSignals(content []byte) ([]types.Signal, error) {
	var file signalsFile
	if err := yaml.Unmarshal(content, &file); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidSignal, "failed to parse signals file", err)
	}

	signals := make([]types.Signal, 0, len(file.Signals))

	for _, raw := range file.Signals {
		takeProfits := optional.None[[]float64]()
		if len(raw.TakeProfits) > 0 {
			takeProfits = optional.Some(raw.TakeProfits)
		}

		signal := types.Signal{
			Time:        raw.Time,
			Symbol:      raw.Symbol,
			Direction:   types.Direction(raw.Direction),
			StopPrice:   raw.StopPrice,
			TakeProfits: takeProfits,
			Reason:      raw.Reason,
		}

		if err := signal.Validate(); err != nil {
			return nil, err
		}

		signals = append(signals, signal)
	}

	return signals, nil
}
