package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNew() {
	err := New(ErrCodeInvalidConfiguration, "bad config")
	suite.Equal(ErrCodeInvalidConfiguration, err.Code)
	suite.Equal("bad config", err.Message)
	suite.Nil(err.Cause)
	suite.Equal("[101] bad config", err.Error())
}

func (suite *ErrorTestSuite) TestNewf() {
	err := Newf(ErrCodeReplayNotFound, "replay %s not found", "abc")
	suite.Equal("[302] replay abc not found", err.Error())
}

func (suite *ErrorTestSuite) TestWrap() {
	cause := stderrors.New("disk full")
	err := Wrap(ErrCodeQueryFailed, "failed to read candles", cause)
	suite.Equal(ErrCodeQueryFailed, err.Code)
	suite.Equal("[202] failed to read candles: disk full", err.Error())
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestWrapf() {
	cause := stderrors.New("timeout")
	err := Wrapf(ErrCodeDataSourceUnavailable, cause, "source %s unreachable", "csv")
	suite.Equal("[201] source csv unreachable: timeout", err.Error())
	suite.True(stderrors.Is(err, cause))
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidSpeed, "speed must be positive")
	suite.Equal(ErrCodeInvalidSpeed, GetCode(err))

	// Wrapped inside a plain fmt error, the code is still discoverable.
	wrapped := fmt.Errorf("outer: %w", err)
	suite.Equal(ErrCodeInvalidSpeed, GetCode(wrapped))

	// A non-typed error yields the unknown code.
	suite.Equal(ErrCodeUnknown, GetCode(stderrors.New("plain")))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeLedgerInvariant, "closed more than held")
	suite.True(HasCode(err, ErrCodeLedgerInvariant))
	suite.False(HasCode(err, ErrCodeInvalidCandle))
}

func (suite *ErrorTestSuite) TestIsRecoverable() {
	suite.True(IsRecoverable(New(ErrCodeInvalidCandle, "high below low")))
	suite.True(IsRecoverable(New(ErrCodeEntryRejected, "zero risk distance")))
	suite.False(IsRecoverable(New(ErrCodeLedgerInvariant, "invariant")))
	suite.False(IsRecoverable(stderrors.New("plain")))
}
