// Package errs defines the closed set of error kinds every engine in
// the workspace raises. Engines never log-and-return-nil:
// every failure is a *Error carrying the offending component name(s),
// the operation that failed, and (when applicable) a wrapped cause.
package errs

import "fmt"

// Kind is the closed set of error kinds.
type Kind string

const (
	KindManifest         Kind = "ManifestError"
	KindDependency       Kind = "DependencyError"
	KindCycle            Kind = "CycleError"
	KindConflict         Kind = "ConflictError"
	KindLockMismatch     Kind = "LockMismatch"
	KindGitTransient     Kind = "GitError/Transient"
	KindGitPermanent     Kind = "GitError/Permanent"
	KindVendor           Kind = "VendorError"
	KindSecretDetected   Kind = "SecretDetected"
	KindCheckpointResume Kind = "CheckpointResumeError"
	KindCacheMiss        Kind = "CacheMiss" // not user-facing
	KindRemoteBackend    Kind = "RemoteBackendError"
	KindWorkspaceBusy    Kind = "WorkspaceBusy"
	KindCancelled        Kind = "Cancelled"
	KindApplyFailed      Kind = "ApplyFailed"
)

// Error is the typed error value every engine returns on failure.
type Error struct {
	Kind       Kind
	Operation  string
	Components []string
	Detail     string
	Cause      error
}

func (e *Error) Error() string {
	comp := ""
	if len(e.Components) > 0 {
		comp = fmt.Sprintf(" component(s)=%v", e.Components)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s%s: %s: %v", e.Kind, e.Operation, comp, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s%s: %s", e.Kind, e.Operation, comp, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether this error class is ever locally retried
// (transient GitError and RemoteBackendError; everything else is not).
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindGitTransient, KindRemoteBackend:
		return true
	default:
		return false
	}
}

// New constructs an Error.
func New(kind Kind, operation string, components []string, detail string, cause error) *Error {
	return &Error{Kind: kind, Operation: operation, Components: components, Detail: detail, Cause: cause}
}

// ExitCode maps an error kind to the process's exit code.
func (e *Error) ExitCode() int {
	switch e.Kind {
	case KindWorkspaceBusy:
		return 3
	case KindCancelled:
		return 4
	case KindManifest, KindDependency, KindCycle, KindConflict, KindLockMismatch:
		return 1
	default:
		return 2
	}
}
