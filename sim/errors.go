package sim

import "errors"

// Programming-contract violations. Each is returned (wrapped with detail)
// to the caller that broke the contract and is never retried by the kernel.
var (
	ErrAccessDenied       = errors.New("access denied")
	ErrNoFocus            = errors.New("caller does not hold focus")
	ErrFocusHeld          = errors.New("focus is already held")
	ErrUnknownComponent   = errors.New("unknown component")
	ErrDuplicateComponent = errors.New("duplicate component")
	ErrDuplicatePlanKey   = errors.New("duplicate plan key")
	ErrPlanInPast         = errors.New("plan scheduled in the past")
	ErrAlreadyRan         = errors.New("simulation already ran")
	ErrUnknownPerson      = errors.New("unknown person")
	ErrUnknownIdentifier  = errors.New("unknown identifier")
	ErrDuplicateIndex     = errors.New("duplicate index key")
	ErrUnknownIndex       = errors.New("unknown index key")
	ErrNotOwner           = errors.New("caller does not own index")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrInvalidPartition   = errors.New("invalid partition definition")
	ErrInvalidArgument    = errors.New("invalid argument")
)
