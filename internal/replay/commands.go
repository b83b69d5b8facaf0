package replay

import (
	"encoding/json"

	"github.com/candlelab/replay/pkg/errors"
)

// CommandType identifies a playback control command.
type CommandType string

const (
	// CommandPause suspends candle consumption at the next checkpoint.
	CommandPause CommandType = "pause"
	// CommandResume continues consumption from a paused state.
	CommandResume CommandType = "resume"
	// CommandStep processes exactly one candle while paused.
	CommandStep CommandType = "step"
	// CommandSpeed changes the streaming pace multiplier.
	CommandSpeed CommandType = "speed"
	// CommandSeek fast-forwards to a later candle index.
	CommandSeek CommandType = "seek"
	// CommandStop terminates the replay.
	CommandStop CommandType = "stop"
)

// Command is a playback control request. Commands are applied only at
// per-candle checkpoints, never mid-candle.
type Command struct {
	Type CommandType `json:"command" yaml:"command"`
	// Speed is the new pace multiplier. Only read for CommandSpeed.
	Speed float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
	// Index is the target candle index. Only read for CommandSeek.
	Index int `json:"index,omitempty" yaml:"index,omitempty"`
}

// ParseCommand parses a JSON control message into a validated Command.
func ParseCommand(data []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Command{}, errors.Wrap(errors.ErrCodeInvalidCommand, "failed to parse command JSON", err)
	}

	if err := cmd.Validate(); err != nil {
		return Command{}, err
	}

	return cmd, nil
}

// Validate checks the command's type and arguments.
func (c Command) Validate() error {
	switch c.Type {
	case CommandPause, CommandResume, CommandStep, CommandStop:
		return nil
	case CommandSpeed:
		if c.Speed <= 0 {
			return errors.Newf(errors.ErrCodeInvalidSpeed, "speed must be positive, got %f", c.Speed)
		}

		return nil
	case CommandSeek:
		if c.Index < 0 {
			return errors.Newf(errors.ErrCodeInvalidSeekIndex, "seek index must be non-negative, got %d", c.Index)
		}

		return nil
	default:
		return errors.Newf(errors.ErrCodeInvalidCommand, "unknown command '%s'", c.Type)
	}
}
