package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Submission & Judge errors
// 14000-14999: Competition & Scoreboard errors
const (
	// ========== System & Common Errors (10000-10999) ==========

	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Database errors (10100-10199)
	DatabaseError     ErrorCode = 10100
	RecordNotFound    ErrorCode = 10101
	TransactionFailed ErrorCode = 10102

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Storage errors (10300-10399)
	StorageError ErrorCode = 10300

	// Validation errors (10400-10499)
	ValidationFailed ErrorCode = 10400

	// ========== Submission & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	SubmissionNotFound     ErrorCode = 13000
	SubmissionCreateFailed ErrorCode = 13001
	CodeTooLarge           ErrorCode = 13002
	LanguageNotSupported   ErrorCode = 13003
	ProblemNotFound        ErrorCode = 13004
	TestDataUnavailable    ErrorCode = 13005

	// Judge (13100-13199)
	UserAlreadyJudging ErrorCode = 13100
	JudgeQueueFull     ErrorCode = 13101
	JudgeSystemError   ErrorCode = 13102
	EngineUnavailable  ErrorCode = 13103

	// Realtime channel (13200-13299)
	RealtimeSessionNotFound ErrorCode = 13200
	RealtimeSubscriberBusy  ErrorCode = 13201

	// Debug runs (13300-13399)
	DebugInputTooLarge ErrorCode = 13300
	TooManyDebugInputs ErrorCode = 13301

	// ========== Competition & Scoreboard Errors (14000-14999) ==========

	ContestNotFound     ErrorCode = 14000
	ContestNotStarted   ErrorCode = 14001
	ContestEnded        ErrorCode = 14002
	NotRegistered       ErrorCode = 14003
	RankingNotAvailable ErrorCode = 14100
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	DatabaseError:     "Database operation failed",
	RecordNotFound:    "Record not found in database",
	TransactionFailed: "Database transaction failed",

	CacheError:   "Cache operation failed",
	StorageError: "Object storage operation failed",

	ValidationFailed: "Validation failed",

	SubmissionNotFound:     "Submission not found",
	SubmissionCreateFailed: "Failed to create submission",
	CodeTooLarge:           "Code is too large",
	LanguageNotSupported:   "Programming language not supported",
	ProblemNotFound:        "Problem not found",
	TestDataUnavailable:    "Problem test data is unavailable",

	UserAlreadyJudging: "You already have a submission being judged",
	JudgeQueueFull:     "Judge system is busy, please try again later",
	JudgeSystemError:   "Judge system error",
	EngineUnavailable:  "Execution engine is unavailable",

	RealtimeSessionNotFound: "There is no active testing for this submission",
	RealtimeSubscriberBusy:  "Somebody is already subscribed to this testing",

	DebugInputTooLarge: "Debug input is too large",
	TooManyDebugInputs: "Too many debug inputs",

	ContestNotFound:     "Competition not found",
	ContestNotStarted:   "Competition has not started yet",
	ContestEnded:        "Competition has ended",
	NotRegistered:       "Not registered for this competition",
	RankingNotAvailable: "Ranking is not available",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case Success:
		return 200
	case InvalidParams, ValidationFailed, CodeTooLarge, LanguageNotSupported,
		DebugInputTooLarge, TooManyDebugInputs:
		return 400
	case Unauthorized:
		return 401
	case Forbidden, NotRegistered:
		return 403
	case NotFound, RecordNotFound, SubmissionNotFound, ProblemNotFound,
		ContestNotFound, RealtimeSessionNotFound:
		return 404
	case UserAlreadyJudging, RealtimeSubscriberBusy:
		return 409
	case TooManyRequests:
		return 429
	case JudgeQueueFull, ServiceUnavailable, EngineUnavailable:
		return 503
	default:
		return 500
	}
}
