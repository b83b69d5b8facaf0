package replay

import (
	"encoding/json"
	"reflect"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v2"

	"github.com/candlelab/replay/internal/version"
	"github.com/candlelab/replay/pkg/errors"
)

// Config is the immutable configuration of one replay run. It is validated
// at construction; an invalid config is fatal and no simulated trading
// happens before validation passes.
type Config struct {
	// Version optionally pins the engine version the config was written for.
	Version string `yaml:"version" json:"version" jsonschema:"title=Config Version,description=Engine version this config was written for"`
	// Symbol is the asset identifier the candle data belongs to.
	Symbol string `yaml:"symbol" json:"symbol" validate:"required" jsonschema:"title=Symbol,description=Asset identifier of the replayed candle series"`
	// Timeframe is the candle interval identifier (1m, 5m, 1h, ...).
	Timeframe string `yaml:"timeframe" json:"timeframe" jsonschema:"title=Timeframe,description=Candle interval of the replayed series"`
	// StartTime/EndTime optionally bound the replayed range.
	StartTime optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time"`
	EndTime   optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time"`

	// InitialBalance is the starting cash balance.
	InitialBalance float64 `yaml:"initial_balance" json:"initial_balance" validate:"required,gt=0" jsonschema:"title=Initial Balance,minimum=0"`
	// RiskPerTrade is the fraction of the current balance risked per entry.
	RiskPerTrade float64 `yaml:"risk_per_trade" json:"risk_per_trade" validate:"required,gt=0,lte=1" jsonschema:"title=Risk Per Trade,description=Fraction of balance risked per trade,maximum=1"`
	// MaxConcurrentPositions caps the number of simultaneously open positions.
	MaxConcurrentPositions int `yaml:"max_concurrent_positions" json:"max_concurrent_positions" validate:"gte=1" jsonschema:"title=Max Concurrent Positions,minimum=1"`
	// CommissionRate is charged on notional at entry and on every exit.
	CommissionRate float64 `yaml:"commission_rate" json:"commission_rate" validate:"gte=0" jsonschema:"title=Commission Rate,minimum=0"`
	// SlippageRate moves fills adversely: entries and stop exits are filled
	// at price*(1±rate) against the trade.
	SlippageRate float64 `yaml:"slippage_rate" json:"slippage_rate" validate:"gte=0" jsonschema:"title=Slippage Rate,minimum=0"`

	// EnableStopLoss/EnableTakeProfit gate the respective exit checks.
	EnableStopLoss   bool `yaml:"enable_stop_loss" json:"enable_stop_loss" jsonschema:"title=Enable Stop Loss"`
	EnableTakeProfit bool `yaml:"enable_take_profit" json:"enable_take_profit" jsonschema:"title=Enable Take Profit"`
	// TakeProfitMultiples are the default risk multiples targets are placed
	// at when a signal carries no explicit levels. Must be ascending.
	TakeProfitMultiples []float64 `yaml:"take_profit_multiples" json:"take_profit_multiples" jsonschema:"title=Take Profit Multiples"`
	// PartialExitFraction is the fraction of the original quantity closed at
	// each take-profit level except the last, which closes the remainder.
	PartialExitFraction float64 `yaml:"partial_exit_fraction" json:"partial_exit_fraction" validate:"gt=0,lte=1" jsonschema:"title=Partial Exit Fraction,maximum=1"`
	// DailyLossLimit blocks new entries once the day's realized loss reaches
	// this fraction of the starting balance. 0 disables the limit.
	DailyLossLimit float64 `yaml:"daily_loss_limit" json:"daily_loss_limit" validate:"gte=0,lte=1" jsonschema:"title=Daily Loss Limit,maximum=1"`
	// StopFirst resolves same-candle stop/take-profit collisions in favor of
	// the stop. The intrabar path is unknown; stop-first is the capital-
	// conservative modeling assumption and the default.
	StopFirst bool `yaml:"stop_first" json:"stop_first" jsonschema:"title=Stop First,description=Same-candle stop/take-profit tie-break"`

	// SnapshotInterval is the candle period between emitted snapshots.
	SnapshotInterval int `yaml:"snapshot_interval" json:"snapshot_interval" validate:"gte=1" jsonschema:"title=Snapshot Interval,minimum=1"`
	// Speed is the initial playback speed multiplier for streaming mode.
	Speed float64 `yaml:"speed" json:"speed" validate:"gt=0" jsonschema:"title=Speed,description=Initial playback speed multiplier"`
}

// DefaultConfig returns a Config with every tunable at its default.
func DefaultConfig() Config {
	return Config{
		Version:                "",
		Symbol:                 "",
		Timeframe:              "1m",
		StartTime:              optional.None[time.Time](),
		EndTime:                optional.None[time.Time](),
		InitialBalance:         10000,
		RiskPerTrade:           0.02,
		MaxConcurrentPositions: 3,
		CommissionRate:         0,
		SlippageRate:           0,
		EnableStopLoss:         true,
		EnableTakeProfit:       true,
		TakeProfitMultiples:    []float64{2, 3, 5},
		PartialExitFraction:    0.5,
		DailyLossLimit:         0,
		StopFirst:              true,
		SnapshotInterval:       10,
		Speed:                  1,
	}
}

// ParseConfig parses a YAML document into a Config, applying defaults for
// omitted fields, and validates the result.
func ParseConfig(content string) (Config, error) {
	config := DefaultConfig()

	if err := yaml.Unmarshal([]byte(content), &config); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config YAML", err)
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// UnmarshalYAML implements custom unmarshaling so optional times round-trip
// through optional.Option.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type rawConfig struct {
		Version                string     `yaml:"version"`
		Symbol                 string     `yaml:"symbol"`
		Timeframe              string     `yaml:"timeframe"`
		StartTime              *time.Time `yaml:"start_time"`
		EndTime                *time.Time `yaml:"end_time"`
		InitialBalance         *float64   `yaml:"initial_balance"`
		RiskPerTrade           *float64   `yaml:"risk_per_trade"`
		MaxConcurrentPositions *int       `yaml:"max_concurrent_positions"`
		CommissionRate         *float64   `yaml:"commission_rate"`
		SlippageRate           *float64   `yaml:"slippage_rate"`
		EnableStopLoss         *bool      `yaml:"enable_stop_loss"`
		EnableTakeProfit       *bool      `yaml:"enable_take_profit"`
		TakeProfitMultiples    []float64  `yaml:"take_profit_multiples"`
		PartialExitFraction    *float64   `yaml:"partial_exit_fraction"`
		DailyLossLimit         *float64   `yaml:"daily_loss_limit"`
		StopFirst              *bool      `yaml:"stop_first"`
		SnapshotInterval       *int       `yaml:"snapshot_interval"`
		Speed                  *float64   `yaml:"speed"`
	}

	var raw rawConfig
	if err := unmarshal(&raw); err != nil {
		return err
	}

	if raw.Version != "" {
		c.Version = raw.Version
	}

	if raw.Symbol != "" {
		c.Symbol = raw.Symbol
	}

	if raw.Timeframe != "" {
		c.Timeframe = raw.Timeframe
	}

	if raw.StartTime != nil {
		c.StartTime = optional.Some(*raw.StartTime)
	}

	if raw.EndTime != nil {
		c.EndTime = optional.Some(*raw.EndTime)
	}

	if raw.InitialBalance != nil {
		c.InitialBalance = *raw.InitialBalance
	}

	if raw.RiskPerTrade != nil {
		c.RiskPerTrade = *raw.RiskPerTrade
	}

	if raw.MaxConcurrentPositions != nil {
		c.MaxConcurrentPositions = *raw.MaxConcurrentPositions
	}

	if raw.CommissionRate != nil {
		c.CommissionRate = *raw.CommissionRate
	}

	if raw.SlippageRate != nil {
		c.SlippageRate = *raw.SlippageRate
	}

	if raw.EnableStopLoss != nil {
		c.EnableStopLoss = *raw.EnableStopLoss
	}

	if raw.EnableTakeProfit != nil {
		c.EnableTakeProfit = *raw.EnableTakeProfit
	}

	if raw.TakeProfitMultiples != nil {
		c.TakeProfitMultiples = raw.TakeProfitMultiples
	}

	if raw.PartialExitFraction != nil {
		c.PartialExitFraction = *raw.PartialExitFraction
	}

	if raw.DailyLossLimit != nil {
		c.DailyLossLimit = *raw.DailyLossLimit
	}

	if raw.StopFirst != nil {
		c.StopFirst = *raw.StopFirst
	}

	if raw.SnapshotInterval != nil {
		c.SnapshotInterval = *raw.SnapshotInterval
	}

	if raw.Speed != nil {
		c.Speed = *raw.Speed
	}

	return nil
}

// Validate checks the config against its constraints. It is called once at
// construction; a failing config never produces a RunState.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid replay config", err)
	}

	if len(c.TakeProfitMultiples) == 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "at least one take profit multiple is required")
	}

	if !sort.Float64sAreSorted(c.TakeProfitMultiples) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "take profit multiples must be ascending")
	}

	for _, m := range c.TakeProfitMultiples {
		if m <= 0 {
			return errors.Newf(errors.ErrCodeInvalidConfiguration, "take profit multiple must be positive: %f", m)
		}
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && c.EndTime.Unwrap().Before(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time is before start_time")
	}

	if err := version.CheckConfigCompatibility(version.GetVersion(), c.Version); err != nil {
		return err
	}

	return nil
}

// GenerateSchema generates a JSON schema for the replay Config.
func (c *Config) GenerateSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)
	schema.Title = "replay-config"
	schema.Description = "Configuration schema for a candle replay run"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema
}

// GenerateSchemaJSON generates a JSON schema string for the replay Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema := c.GenerateSchema()

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}
