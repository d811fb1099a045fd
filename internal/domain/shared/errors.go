package shared

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrUnauthorized  = NewDomainError("UNAUTHORIZED", "Not authorized to perform this action")
)

// Offline-terminal error taxonomy. These are the failures the UI surfaces
// verbatim; none of them is retried automatically.
var (
	// ErrPoolExhausted means no identifier is left in any active range for
	// the requested kind. The write is rejected; the terminal must reach
	// the authority to replenish.
	ErrPoolExhausted = NewDomainError("POOL_EXHAUSTED", "Identifier pool exhausted, connectivity required to replenish")

	// ErrNoOpenSession means an invoice was issued with no open cash session.
	ErrNoOpenSession = NewDomainError("NO_OPEN_SESSION", "No open cash session on this terminal")

	// ErrAuthUnavailable means the user has never authenticated online on
	// this terminal, so there is no cached credential to verify against.
	ErrAuthUnavailable = NewDomainError("AUTH_UNAVAILABLE", "First login requires connectivity to the server")

	// ErrSyncConflict means the authority rejected a pushed record. The
	// record is parked for operator review, never resolved silently.
	ErrSyncConflict = NewDomainError("SYNC_CONFLICT", "Server rejected the record, manual review required")

	// ErrConnectivityTimeout is the transient probe/push failure that
	// feeds the connectivity state machine.
	ErrConnectivityTimeout = NewDomainError("CONNECTIVITY_TIMEOUT", "Server did not answer within the deadline")

	// ErrTerminalLocked is returned by gated write operations while the
	// terminal is in the LOCKED connectivity state.
	ErrTerminalLocked = NewDomainError("TERMINAL_LOCKED", "Terminal is locked while the server is unreachable")
)
