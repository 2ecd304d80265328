package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidOrderParams   ErrorCode = 102
	ErrCodeInvalidQuantity      ErrorCode = 103
	ErrCodeInvalidPrice         ErrorCode = 104
	ErrCodeInvalidTransition    ErrorCode = 105
	ErrCodeMissingParameter     ErrorCode = 106

	// Capital/risk errors (200-299)
	ErrCodeInsufficientCapital  ErrorCode = 200
	ErrCodePositionSizeExceeded ErrorCode = 201
	ErrCodeDailyTradeLimit      ErrorCode = 202
	ErrCodeOutsideTradingHours  ErrorCode = 203

	// Connectivity errors (300-399)
	ErrCodeBrokerUnavailable     ErrorCode = 300
	ErrCodeMarketDataUnavailable ErrorCode = 301
	ErrCodeRequestTimeout        ErrorCode = 302

	// Broker rejection errors (400-499)
	ErrCodeOrderRejected ErrorCode = 400
	ErrCodeCancelFailed  ErrorCode = 401

	// Session errors (500-599)
	ErrCodeSessionNotFound    ErrorCode = 500
	ErrCodeTickerNotFound     ErrorCode = 501
	ErrCodeStrategyNotFound   ErrorCode = 502
	ErrCodeSessionNotRunning  ErrorCode = 503
	ErrCodeSessionStopTimeout ErrorCode = 504

	// Storage errors (600-699)
	ErrCodeStoreInitFailed ErrorCode = 600
	ErrCodeQueryFailed     ErrorCode = 601
	ErrCodeOrderNotFound   ErrorCode = 602
	ErrCodeExportFailed    ErrorCode = 603

	// Backtest errors (700-799)
	ErrCodeBacktestConfigError ErrorCode = 700
	ErrCodeBacktestNoData      ErrorCode = 701
)
