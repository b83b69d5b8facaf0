package replay

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/candlelab/replay/pkg/errors"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		want     Command
		wantCode errors.ErrorCode
	}{
		{
			name:    "pause",
			payload: `{"command":"pause"}`,
			want:    Command{Type: CommandPause, Speed: 0, Index: 0},
		},
		{
			name:    "resume",
			payload: `{"command":"resume"}`,
			want:    Command{Type: CommandResume, Speed: 0, Index: 0},
		},
		{
			name:    "step",
			payload: `{"command":"step"}`,
			want:    Command{Type: CommandStep, Speed: 0, Index: 0},
		},
		{
			name:    "speed",
			payload: `{"command":"speed","speed":2.5}`,
			want:    Command{Type: CommandSpeed, Speed: 2.5, Index: 0},
		},
		{
			name:    "seek",
			payload: `{"command":"seek","index":50}`,
			want:    Command{Type: CommandSeek, Speed: 0, Index: 50},
		},
		{
			name:    "stop",
			payload: `{"command":"stop"}`,
			want:    Command{Type: CommandStop, Speed: 0, Index: 0},
		},
		{
			name:     "zero speed",
			payload:  `{"command":"speed","speed":0}`,
			wantCode: errors.ErrCodeInvalidSpeed,
		},
		{
			name:     "negative speed",
			payload:  `{"command":"speed","speed":-1}`,
			wantCode: errors.ErrCodeInvalidSpeed,
		},
		{
			name:     "negative seek index",
			payload:  `{"command":"seek","index":-5}`,
			wantCode: errors.ErrCodeInvalidSeekIndex,
		},
		{
			name:     "unknown command",
			payload:  `{"command":"rewind"}`,
			wantCode: errors.ErrCodeInvalidCommand,
		},
		{
			name:     "malformed json",
			payload:  `{"command":`,
			wantCode: errors.ErrCodeInvalidCommand,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := ParseCommand([]byte(tt.payload))
			if tt.wantCode != 0 {
				assert.Error(t, err)
				assert.True(t, errors.HasCode(err, tt.wantCode))
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, cmd)
			}
		})
	}
}
