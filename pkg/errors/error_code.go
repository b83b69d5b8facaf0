package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Validation errors (100-199)
	ErrCodeInvalidParameter     ErrorCode = 100
	ErrCodeInvalidConfiguration ErrorCode = 101
	ErrCodeInvalidCandle        ErrorCode = 102
	ErrCodeInvalidSignal        ErrorCode = 103
	ErrCodeInvalidSpeed         ErrorCode = 104
	ErrCodeInvalidSeekIndex     ErrorCode = 105
	ErrCodeInvalidCommand       ErrorCode = 106
	ErrCodeInvalidVersion       ErrorCode = 107

	// Data/Resource errors (200-299)
	ErrCodeDataNotFound          ErrorCode = 200
	ErrCodeDataSourceUnavailable ErrorCode = 201
	ErrCodeQueryFailed           ErrorCode = 202
	ErrCodeEmptyCandleSequence   ErrorCode = 203
	ErrCodeUnsupportedDataFormat ErrorCode = 204

	// Playback errors (300-399)
	ErrCodeReplayNotPaused    ErrorCode = 300
	ErrCodeReplayTerminated   ErrorCode = 301
	ErrCodeReplayNotFound     ErrorCode = 302
	ErrCodeReplayInitFailed   ErrorCode = 303
	ErrCodeCommandRejected    ErrorCode = 304
	ErrCodeSnapshotEmitFailed ErrorCode = 305

	// Simulation errors (400-499)
	ErrCodeLedgerInvariant    ErrorCode = 400
	ErrCodePositionNotFound   ErrorCode = 401
	ErrCodeEntryRejected      ErrorCode = 402
	ErrCodeDailyLimitBreached ErrorCode = 403

	// Statistics errors (500-599)
	ErrCodeStatsWriteFailed ErrorCode = 500

	// Server errors (600-699)
	ErrCodeServerInitFailed   ErrorCode = 600
	ErrCodeWebsocketUpgrade   ErrorCode = 601
	ErrCodeRequestBodyInvalid ErrorCode = 602
)
