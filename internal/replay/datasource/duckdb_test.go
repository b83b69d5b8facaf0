package datasource

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/stretchr/testify/suite"

	"github.com/candlelab/replay/internal/logger"
	"github.com/candlelab/replay/internal/types"
)

type DuckDBSourceTestSuite struct {
	suite.Suite

	source  CandleSource
	csvPath string
}

func TestDuckDBSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBSourceTestSuite))
}

func (suite *DuckDBSourceTestSuite) SetupTest() {
	source, err := NewDuckDBSource(":memory:", "BTCUSDT", logger.NewTestLogger())
	suite.Require().NoError(err)

	suite.source = source
	suite.csvPath = filepath.Join(suite.T().TempDir(), "candles.csv")

	content := "time,open,high,low,close,volume\n"
	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 10; i++ {
		ts := base.Add(time.Duration(i) * time.Minute)
		close := 100 + float64(i)
		content += fmt.Sprintf("%s,%f,%f,%f,%f,%f\n",
			ts.Format("2006-01-02 15:04:05"), close-0.5, close+1, close-1, close, 1000.0)
	}

	suite.Require().NoError(os.WriteFile(suite.csvPath, []byte(content), 0644))
}

func (suite *DuckDBSourceTestSuite) TearDownTest() {
	if suite.source != nil {
		suite.Require().NoError(suite.source.Close())
	}
}

func (suite *DuckDBSourceTestSuite) TestInitializeAndCount() {
	suite.Require().NoError(suite.source.Initialize(suite.csvPath))

	count, err := suite.source.Count(optional.None[time.Time](), optional.None[time.Time]())
	suite.Require().NoError(err)
	suite.Assert().Equal(10, count)
}

func (suite *DuckDBSourceTestSuite) TestReadAllOrderedAndStamped() {
	suite.Require().NoError(suite.source.Initialize(suite.csvPath))

	var candles []types.Candle

	for candle, err := range suite.source.ReadAll(optional.None[time.Time](), optional.None[time.Time]()) {
		suite.Require().NoError(err)
		candles = append(candles, candle)
	}

	suite.Require().Len(candles, 10)
	suite.Assert().Equal("BTCUSDT", candles[0].Symbol)
	suite.Assert().InDelta(100, candles[0].Close, 1e-9)
	suite.Assert().InDelta(109, candles[9].Close, 1e-9)

	for i := 1; i < len(candles); i++ {
		suite.Assert().True(candles[i].Time.After(candles[i-1].Time))
	}
}

func (suite *DuckDBSourceTestSuite) TestTimeRangeFilter() {
	suite.Require().NoError(suite.source.Initialize(suite.csvPath))

	base := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	start := optional.Some(base.Add(2 * time.Minute))
	end := optional.Some(base.Add(5 * time.Minute))

	count, err := suite.source.Count(start, end)
	suite.Require().NoError(err)
	suite.Assert().Equal(4, count)
}

func (suite *DuckDBSourceTestSuite) TestUnsupportedExtension() {
	err := suite.source.Initialize(filepath.Join(suite.T().TempDir(), "candles.json"))

	suite.Assert().Error(err)
}
