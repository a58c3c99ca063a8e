package frooties

import (
	"errors"
	"strings"
)

// Revert kinds. A *RevertError unwraps to one of these.
var (
	ErrPhaseInactive   = errors.New("mint phase inactive")
	ErrQuotaExceeded   = errors.New("mint quota exceeded")
	ErrBadSignature    = errors.New("bad whitelist signature")
	ErrUnderPayment    = errors.New("insufficient payment")
	ErrUnauthorized    = errors.New("unauthorized caller")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTransferFailed  = errors.New("transfer failed")
	ErrNonPayable      = errors.New("non-payable function called with value")
)

// Revert reason strings returned to callers.
const (
	ReasonWhitelistInactive = "Whitelist mint not active"
	ReasonPublicInactive    = "Public mint not active"
	ReasonReserveInactive   = "Reserve mint not active"
	ReasonSignerMismatch    = "Signer does not match"
	ReasonInsufficientFunds = "Insufficient payment"
	ReasonOnlyAdmin         = "Only admin"
	ReasonInvalidQuantity   = "Invalid quantity"
	ReasonInvalidStage      = "Invalid stage"
	ReasonStageScheduled    = "Stage is scheduled"
	ReasonCallFailed        = "Call failed"
	ReasonNonexistentToken  = "Nonexistent token"
)

// RevertError aborts a contract call. Reason is empty for reverts without a
// reason string.
type RevertError struct {
	Kind   error
	Reason string
}

func revert(kind error, reason string) *RevertError {
	return &RevertError{Kind: kind, Reason: reason}
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

func (e *RevertError) Unwrap() error {
	return e.Kind
}

// Data returns the ABI encoded revert payload.
func (e *RevertError) Data() []byte {
	if e.Reason == "" {
		return nil
	}
	return EncodeRevert(e.Reason)
}

// Reason extracts the revert reason from err, if it is a revert.
func Reason(err error) (string, bool) {
	var rerr *RevertError
	if !errors.As(err, &rerr) {
		return "", false
	}
	return rerr.Reason, true
}

// KindOf maps a revert reason back to its kind. Unknown reasons map to
// ErrInvalidArgument.
func KindOf(reason string) error {
	switch reason {
	case ReasonWhitelistInactive, ReasonPublicInactive, ReasonReserveInactive:
		return ErrPhaseInactive
	case ReasonSignerMismatch:
		return ErrBadSignature
	case ReasonInsufficientFunds:
		return ErrUnderPayment
	case ReasonOnlyAdmin:
		return ErrUnauthorized
	case ReasonCallFailed:
		return ErrTransferFailed
	}
	if strings.HasPrefix(reason, "Max ") {
		return ErrQuotaExceeded
	}
	return ErrInvalidArgument
}
