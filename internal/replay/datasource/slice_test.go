package datasource

import (
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/candlelab/replay/internal/types"
)

type SliceSourceTestSuite struct {
	suite.Suite

	candles []types.Candle
}

func TestSliceSourceSuite(t *testing.T) {
	suite.Run(t, new(SliceSourceTestSuite))
}

func (suite *SliceSourceTestSuite) SetupTest() {
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	suite.candles = nil
	for i := 0; i < 5; i++ {
		suite.candles = append(suite.candles, types.Candle{
			Time:   base.Add(time.Duration(i) * time.Minute),
			Symbol: "BTCUSDT",
			Open:   100,
			High:   101,
			Low:    99,
			Close:  100,
			Volume: 1000,
		})
	}
}

func (suite *SliceSourceTestSuite) collect(source CandleSource, start, end optional.Option[time.Time]) []types.Candle {
	var out []types.Candle

	for candle, err := range source.ReadAll(start, end) {
		suite.Require().NoError(err)
		out = append(out, candle)
	}

	return out
}

func (suite *SliceSourceTestSuite) TestReadAllUnbounded() {
	source := NewSliceSource(suite.candles)

	out := suite.collect(source, optional.None[time.Time](), optional.None[time.Time]())
	suite.Assert().Len(out, 5)
	suite.Assert().Equal(suite.candles[0].Time, out[0].Time)

	count, err := source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Assert().Equal(5, count)
}

func (suite *SliceSourceTestSuite) TestReadAllBounded() {
	source := NewSliceSource(suite.candles)

	start := optional.Some(suite.candles[1].Time)
	end := optional.Some(suite.candles[3].Time)

	out := suite.collect(source, start, end)
	suite.Require().Len(out, 3)
	suite.Assert().Equal(suite.candles[1].Time, out[0].Time)
	suite.Assert().Equal(suite.candles[3].Time, out[2].Time)

	count, err := source.Count(start, end)
	suite.Require().NoError(err)
	suite.Assert().Equal(3, count)
}

func (suite *SliceSourceTestSuite) TestEarlyTermination() {
	source := NewSliceSource(suite.candles)

	seen := 0
	source.ReadAll(optional.None[time.Time](), optional.None[time.Time]())(func(candle types.Candle, err error) bool {
		seen++

		return seen < 2
	})

	suite.Assert().Equal(2, seen)
}

func (suite *SliceSourceTestSuite) TestEmptySource() {
	source := NewSliceSource(nil)

	out := suite.collect(source, optional.None[time.Time](), optional.None[time.Time]())
	suite.Assert().Empty(out)

	count, err := source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Assert().Equal(0, count)

	suite.Assert().NoError(source.Close())
}
