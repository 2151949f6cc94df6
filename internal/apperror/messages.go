package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	// General validation
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidFormat:   "Invalid data format",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	// Configuration
	CodeConfigurationError: "Configuration error",

	// External service errors
	CodeExternalServiceError: "External service error",
	CodeServiceTimeout:       "Service request timeout",
	CodeServiceUnavailable:   "Service temporarily unavailable",
	CodeRateLimitExceeded:    "Rate limit exceeded",

	// System errors
	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",
	CodeFatalStartup:  "Fatal startup error",

	// WebSocket errors
	CodeWebSocketConnectionError: "WebSocket connection error",
	CodeWebSocketReconnecting:    "WebSocket reconnecting",
	CodeWebSocketClosed:          "WebSocket connection closed",
	CodeWebSocketSendError:       "Failed to send WebSocket message",

	// Binance adapter errors
	CodeBinanceConnectionFailed: "Failed to connect to Binance API",
	CodeBinanceAPIError:         "Binance API error",
	CodeBinanceParseFailed:      "Failed to parse Binance depth frame",

	// Bitstamp adapter errors
	CodeBitstampConnectionFailed: "Failed to connect to Bitstamp API",
	CodeBitstampAPIError:         "Bitstamp API error",
	CodeBitstampParseFailed:      "Failed to parse Bitstamp depth frame",

	// Shared orderbook/parsing errors
	CodeInvalidOrderbook: "Invalid orderbook data",
	CodeParseFailure:     "Failed to parse a price level",

	// Fan-out errors
	CodeSubscriberEvicted: "Subscriber evicted after a failed send",

	// Circuit breaker errors
	CodeCircuitOpen:     "Circuit breaker is open",
	CodeCircuitHalfOpen: "Circuit breaker is half-open",
}
