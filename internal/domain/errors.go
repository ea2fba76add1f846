package domain

import (
	"errors"
	"fmt"
)

// Category sentinels — use with NewSubSystemError for subsystem-specific
// errors. Every failure crossing the UI boundary wraps exactly one of these.
var (
	// ErrSpawnFailure means the external chat tool could not be launched at
	// all (missing binary, exec permission). Fatal for the command, never
	// retried automatically.
	ErrSpawnFailure = fmt.Errorf("external tool could not be spawned")
	// ErrProtocol means the external tool produced output we could not parse.
	ErrProtocol = fmt.Errorf("unparsable external tool output")
	// ErrExitStatus means the external tool exited non-zero.
	ErrExitStatus = fmt.Errorf("external tool exited with failure")
	// ErrTimeout means no response arrived within the configured bound.
	ErrTimeout = fmt.Errorf("operation timed out")
	// ErrUnavailable means the adapter circuit is open and the call was
	// rejected without spawning the tool.
	ErrUnavailable = fmt.Errorf("adapter unavailable")
	// ErrListenerDisconnected means the notification stream closed.
	ErrListenerDisconnected = fmt.Errorf("notification stream disconnected")
	// ErrShutdownTimeout means the worker did not stop within its bound and
	// was abandoned; its subprocess resources are presumed leaked.
	ErrShutdownTimeout = fmt.Errorf("worker shutdown timed out")
	// ErrWorkerRunning means Start was called while a prior worker is live.
	ErrWorkerRunning = fmt.Errorf("worker already running")
	// ErrWorkerStopped means a call was made on a stopped worker handle.
	ErrWorkerStopped = fmt.Errorf("worker not running")
	// ErrQueueFull means the bounded command queue rejected a submission.
	ErrQueueFull = fmt.Errorf("command queue full")
	// ErrLoginFailed means the external tool rejected the login attempt.
	ErrLoginFailed = fmt.Errorf("login failed")
	// ErrConfigLoad means the configuration could not be loaded.
	ErrConfigLoad = fmt.Errorf("failed to load configuration")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Adapter.Invoke")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier ("adapter", "listener", "bridge")
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for
// ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryable reports whether a failed read-only command may be safely
// retried by the caller. SendMessage is never retryable regardless of the
// error: a timed-out send may still have been delivered.
func IsRetryable(cmd Command, err error) bool {
	if cmd.Kind == CommandSendMessage {
		return false
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrUnavailable)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

// Error codes. Every sentinel error maps to exactly one code.
const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeSpawnFailure    ErrorCode = "SPAWN_FAILURE"
	CodeProtocol        ErrorCode = "PROTOCOL_ERROR"
	CodeExitStatus      ErrorCode = "EXIT_STATUS"
	CodeTimeout         ErrorCode = "TIMEOUT"
	CodeUnavailable     ErrorCode = "ADAPTER_UNAVAILABLE"
	CodeListenerDropped ErrorCode = "LISTENER_DISCONNECTED"
	CodeShutdownTimeout ErrorCode = "SHUTDOWN_TIMEOUT"
	CodeWorkerRunning   ErrorCode = "WORKER_RUNNING"
	CodeWorkerStopped   ErrorCode = "WORKER_STOPPED"
	CodeQueueFull       ErrorCode = "QUEUE_FULL"
	CodeLoginFailed     ErrorCode = "LOGIN_FAILED"
	CodeConfigLoad      ErrorCode = "CONFIG_LOAD"
)

var codeMap = map[error]ErrorCode{
	ErrSpawnFailure:         CodeSpawnFailure,
	ErrProtocol:             CodeProtocol,
	ErrExitStatus:           CodeExitStatus,
	ErrTimeout:              CodeTimeout,
	ErrUnavailable:          CodeUnavailable,
	ErrListenerDisconnected: CodeListenerDropped,
	ErrShutdownTimeout:      CodeShutdownTimeout,
	ErrWorkerRunning:        CodeWorkerRunning,
	ErrWorkerStopped:        CodeWorkerStopped,
	ErrQueueFull:            CodeQueueFull,
	ErrLoginFailed:          CodeLoginFailed,
	ErrConfigLoad:           CodeConfigLoad,
}

// ErrorCodeOf maps err to its ErrorCode, or CodeUnknown.
func ErrorCodeOf(err error) ErrorCode {
	for sentinel, code := range codeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return CodeUnknown
}
