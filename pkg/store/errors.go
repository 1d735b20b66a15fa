package store

import "errors"

// Configuration errors. These are reported through the log and never abort
// the operation that found them.
var (
	// ErrUnknownMutation is returned by Commit for a type with no handlers.
	ErrUnknownMutation = errors.New("unknown mutation type")

	// ErrUnknownAction rejects the future returned by Dispatch for a type
	// with no handlers.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrDuplicateGetter is reported when a second getter claims a name.
	// The first registration wins.
	ErrDuplicateGetter = errors.New("duplicate getter key")

	// ErrDuplicateNamespace is reported when two namespaced modules resolve
	// to the same namespace string.
	ErrDuplicateNamespace = errors.New("duplicate namespace")

	// ErrStructuralMismatch is reported when a hot update names a module
	// that does not exist. Hot updates cannot add modules.
	ErrStructuralMismatch = errors.New("hot update cannot add new module")
)

// ErrInvariantViolation is the panic value (wrapped) raised in strict mode
// when the state tree changed outside a committing section.
var ErrInvariantViolation = errors.New("do not mutate store state outside mutation handlers")

// Precondition errors, returned to the caller.
var (
	ErrNilDefinition  = errors.New("module definition is nil")
	ErrInvalidPath    = errors.New("invalid module path")
	ErrModuleNotFound = errors.New("module not found")
	ErrModuleExists   = errors.New("module already registered")
	ErrInvalidState   = errors.New("module state must be a State or a func() State")
)
