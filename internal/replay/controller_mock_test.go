package replay_test

import (
	"context"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/replay"
	"github.com/candlelab/replay/internal/types"
	"github.com/candlelab/replay/mocks"
	"github.com/candlelab/replay/pkg/errors"
)

func mockCandles(n int) []types.Candle {
	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	candles := make([]types.Candle, 0, n)
	for i := 0; i < n; i++ {
		close := 100 + float64(i)
		candles = append(candles, types.Candle{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   close - 0.5,
			High:   close + 1,
			Low:    close - 1,
			Close:  close,
			Volume: 1000,
		})
	}

	return candles
}

func candleIterator(candles []types.Candle) func(yield func(types.Candle, error) bool) {
	return func(yield func(types.Candle, error) bool) {
		for _, c := range candles {
			if !yield(c, nil) {
				return
			}
		}
	}
}

func TestControllerWithMockedCollaborators(t *testing.T) {
	ctrl := gomock.NewController(t)

	candles := mockCandles(5)

	source := mocks.NewMockCandleSource(ctrl)
	source.EXPECT().Count(gomock.Any(), gomock.Any()).Return(len(candles), nil)
	source.EXPECT().ReadAll(gomock.Any(), gomock.Any()).Return(candleIterator(candles))

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("mock").AnyTimes()
	provider.EXPECT().Signal(gomock.Any()).Return(optional.None[types.Signal]()).Times(len(candles))

	out := mocks.NewMockSink(ctrl)
	out.EXPECT().Emit(gomock.Any()).MinTimes(1)

	config := replay.DefaultConfig()
	config.Symbol = "BTCUSDT"
	require.NoError(t, config.Validate())

	controller := replay.NewController(config, source, provider, out, logger.NewTestLogger())

	require.NoError(t, controller.Run(context.Background()))

	snapshot := controller.Snapshot()
	assert.Equal(t, types.PlaybackCompleted, snapshot.Status)
	assert.Equal(t, len(candles), snapshot.CandleIndex)
}

func TestControllerFailsWhenCountErrors(t *testing.T) {
	ctrl := gomock.NewController(t)

	source := mocks.NewMockCandleSource(ctrl)
	source.EXPECT().Count(gomock.Any(), gomock.Any()).Return(0, errors.New(errors.ErrCodeQueryFailed, "table missing"))

	provider := mocks.NewMockProvider(ctrl)
	provider.EXPECT().Name().Return("mock").AnyTimes()

	config := replay.DefaultConfig()
	config.Symbol = "BTCUSDT"

	controller := replay.NewController(config, source, provider, nil, logger.NewTestLogger())

	err := controller.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeQueryFailed, errors.GetCode(err))
	assert.Equal(t, types.PlaybackStopped, controller.Snapshot().Status)
}
