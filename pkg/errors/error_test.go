package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidParameter, "invalid parameter: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidParameter, err.Code)
	suite.Equal("invalid parameter: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeOrderNotFound, "order not found", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeOrderNotFound, err.Code)
	suite.Equal("order not found", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeOrderNotFound, cause, "no order for ticker: %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeOrderNotFound, err.Code)
	suite.Equal("no order for ticker: AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal("[100] invalid parameter", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeInsufficientCapital, "not enough capital", cause)
	suite.Equal("[200] not enough capital: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeQueryFailed, "query failed", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.Equal(ErrCodeInvalidParameter, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeBrokerUnavailable, "broker unreachable")
	err := Wrap(ErrCodeCancelFailed, "cancel failed", cause)
	// GetCode returns the outermost error's code.
	suite.Equal(ErrCodeCancelFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromPlainError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")
	suite.True(HasCode(err, ErrCodeInvalidParameter))
	suite.False(HasCode(err, ErrCodeOrderNotFound))
}

func (suite *ErrorTestSuite) TestIsError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeSessionNotFound, "session not found", cause)
	suite.True(Is(err, cause))
}

func (suite *ErrorTestSuite) TestAsError() {
	err := New(ErrCodeInvalidParameter, "invalid parameter")

	var coded *Error

	suite.True(As(err, &coded))
	suite.Equal(ErrCodeInvalidParameter, coded.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	// Verify the category anchors keep their expected values.
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidParameter)
	suite.Equal(ErrorCode(200), ErrCodeInsufficientCapital)
	suite.Equal(ErrorCode(300), ErrCodeBrokerUnavailable)
	suite.Equal(ErrorCode(400), ErrCodeOrderRejected)
	suite.Equal(ErrorCode(500), ErrCodeSessionNotFound)
	suite.Equal(ErrorCode(600), ErrCodeStoreInitFailed)
	suite.Equal(ErrorCode(700), ErrCodeBacktestConfigError)
}
