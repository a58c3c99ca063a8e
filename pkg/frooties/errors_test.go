package frooties

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevertError_Kind(t *testing.T) {
	err := revert(ErrQuotaExceeded, "Max 2")

	assert.True(t, errors.Is(err, ErrQuotaExceeded))
	assert.False(t, errors.Is(err, ErrUnderPayment))

	reason, ok := Reason(err)
	assert.True(t, ok)
	assert.Equal(t, "Max 2", reason)

	_, ok = Reason(errors.New("boom"))
	assert.False(t, ok)
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		reason string
		kind   error
	}{
		{ReasonWhitelistInactive, ErrPhaseInactive},
		{ReasonPublicInactive, ErrPhaseInactive},
		{ReasonReserveInactive, ErrPhaseInactive},
		{ReasonSignerMismatch, ErrBadSignature},
		{ReasonInsufficientFunds, ErrUnderPayment},
		{ReasonOnlyAdmin, ErrUnauthorized},
		{ReasonCallFailed, ErrTransferFailed},
		{"Max 50", ErrQuotaExceeded},
		{ReasonInvalidQuantity, ErrInvalidArgument},
		{ReasonStageScheduled, ErrInvalidArgument},
		{"", ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.reason, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.reason))
		})
	}
}
