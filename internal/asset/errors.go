package asset

import (
	"fmt"

	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// Validation and load error codes (E100-E199).
const (
	ErrGeneric = "E100" // uncategorized load failure

	// Graph asset errors (E101-E109)
	ErrIdentityEmpty       = "E101" // identity is required
	ErrUnknownType         = "E102" // invalid type string
	ErrDuplicateInput      = "E103" // duplicate declared input
	ErrDefaultTypeMismatch = "E104" // default literal doesn't match the declared type
	ErrNoOutputContract    = "E105" // graph declares no terminal output contract
	ErrBadSwitchDefault    = "E106" // static switch default missing or mistyped
	ErrUnknownUsage        = "E107" // invalid usage kind name

	// Signature errors (E110-E119)
	ErrSignatureNoName    = "E110" // signature name is required
	ErrSignatureNoOutputs = "E111" // signature must declare outputs

	// Body errors (E120-E129)
	ErrUnknownEndpoint  = "E120" // link endpoint doesn't name a node/pin
	ErrUnresolvedPath   = "E121" // body call references an unknown stored path
	ErrCompositionCycle = "E122" // graphs reference each other in a cycle
)

// CompileError is a structured asset-load error with source position.
type CompileError struct {
	Code    string
	Field   string
	Message string
	Pos     token.Pos
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("[%s] %s: %s: %s", e.Code, e.Pos, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// formatCUEError flattens a CUE evaluation error into a CompileError
// carrying the first reported position.
func formatCUEError(err error) error {
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	return &CompileError{
		Code:    ErrGeneric,
		Field:   "cue",
		Message: first.Error(),
		Pos:     first.Position(),
	}
}
