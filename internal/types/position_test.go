package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type PositionTestSuite struct {
	suite.Suite
}

func TestPositionSuite(t *testing.T) {
	suite.Run(t, new(PositionTestSuite))
}

func (suite *PositionTestSuite) longPosition() Position {
	return Position{
		ID:                "pos-1",
		Symbol:            "BTCUSDT",
		Direction:         DirectionLong,
		EntryPrice:        100,
		EntryTime:         time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC),
		Quantity:          20,
		RemainingQuantity: 20,
		StopPrice:         90,
		InitialStopPrice:  90,
	}
}

func (suite *PositionTestSuite) TestInitialRiskAmount() {
	p := suite.longPosition()
	// 10 per unit at quantity 20
	suite.InDelta(200.0, p.InitialRiskAmount(), 1e-9)
}

func (suite *PositionTestSuite) TestRMultiple() {
	p := suite.longPosition()
	p.RealizedPnL = 400

	suite.InDelta(2.0, p.RMultiple(), 1e-9)

	p.RealizedPnL = -200
	suite.InDelta(-1.0, p.RMultiple(), 1e-9)
}

func (suite *PositionTestSuite) TestRMultipleZeroRisk() {
	p := suite.longPosition()
	p.InitialStopPrice = p.EntryPrice
	p.RealizedPnL = 100

	suite.Equal(0.0, p.RMultiple())
}

func (suite *PositionTestSuite) TestUnrealizedPnLLong() {
	p := suite.longPosition()
	suite.InDelta(100.0, p.UnrealizedPnL(105), 1e-9)
	suite.InDelta(-40.0, p.UnrealizedPnL(98), 1e-9)
}

func (suite *PositionTestSuite) TestUnrealizedPnLShort() {
	p := suite.longPosition()
	p.Direction = DirectionShort
	p.StopPrice = 110
	p.InitialStopPrice = 110

	suite.InDelta(-100.0, p.UnrealizedPnL(105), 1e-9)
	suite.InDelta(40.0, p.UnrealizedPnL(98), 1e-9)
}

func (suite *PositionTestSuite) TestUnrealizedPnLClosed() {
	p := suite.longPosition()
	p.Closed = true
	p.RemainingQuantity = 0

	suite.Equal(0.0, p.UnrealizedPnL(200))
}

func (suite *PositionTestSuite) TestHoldingTime() {
	p := suite.longPosition()
	suite.Equal(time.Duration(0), p.HoldingTime())

	p.Closed = true
	p.ExitTime = p.EntryTime.Add(90 * time.Minute)
	suite.Equal(90*time.Minute, p.HoldingTime())
}

func (suite *PositionTestSuite) TestDirectionSign() {
	suite.Equal(1.0, DirectionLong.Sign())
	suite.Equal(-1.0, DirectionShort.Sign())
}

func (suite *PositionTestSuite) TestPlaybackStatusTerminal() {
	suite.False(PlaybackRunning.Terminal())
	suite.False(PlaybackPaused.Terminal())
	suite.True(PlaybackStopped.Terminal())
	suite.True(PlaybackCompleted.Terminal())
}
