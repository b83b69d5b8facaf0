package sink

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
)

func snapshotAt(index int) types.Snapshot {
	return types.Snapshot{
		RunID:       "run",
		Symbol:      "BTCUSDT",
		Status:      types.PlaybackRunning,
		CandleIndex: index,
	}
}

func TestChannelSinkDelivers(t *testing.T) {
	s := NewChannelSink(4)

	s.Emit(snapshotAt(1))
	s.Emit(snapshotAt(2))

	assert.Equal(t, 1, (<-s.Snapshots()).CandleIndex)
	assert.Equal(t, 2, (<-s.Snapshots()).CandleIndex)
}

func TestChannelSinkDropsOldestWhenFull(t *testing.T) {
	s := NewChannelSink(2)

	s.Emit(snapshotAt(1))
	s.Emit(snapshotAt(2))
	// Buffer is full: the oldest pending snapshot makes way.
	s.Emit(snapshotAt(3))

	assert.Equal(t, 2, (<-s.Snapshots()).CandleIndex)
	assert.Equal(t, 3, (<-s.Snapshots()).CandleIndex)
}

func TestChannelSinkCloseEndsRange(t *testing.T) {
	s := NewChannelSink(2)
	s.Emit(snapshotAt(1))

	assert.NoError(t, s.Close())

	count := 0
	for range s.Snapshots() {
		count++
	}

	assert.Equal(t, 1, count)
}

func TestMultiSinkFansOut(t *testing.T) {
	first := NewChannelSink(2)
	second := NewChannelSink(2)

	multi := NewMultiSink(first, second, NewLoggerSink(logger.NewTestLogger()))
	multi.Emit(snapshotAt(7))

	assert.Equal(t, 7, (<-first.Snapshots()).CandleIndex)
	assert.Equal(t, 7, (<-second.Snapshots()).CandleIndex)

	assert.NoError(t, multi.Close())
}
