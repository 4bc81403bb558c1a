package errors

import (
	stderrors "errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// ErrUnauthorized is returned when an owner-gated operation is invoked by
// another account. It is never a Revert.
var ErrUnauthorized = stderrors.New("OwnableUnauthorizedAccount")

// Unauthorized wraps ErrUnauthorized with the offending caller.
func Unauthorized(caller common.Address) error {
	return fmt.Errorf("%w(%s)", ErrUnauthorized, caller.Hex())
}

// Revert is a business-rule failure. The reason string is surfaced verbatim
// to the caller in the transaction receipt.
type Revert struct {
	Reason string
}

func (r *Revert) Error() string { return r.Reason }

// Revertf builds a Revert with a formatted reason.
func Revertf(format string, args ...interface{}) error {
	return &Revert{Reason: fmt.Sprintf(format, args...)}
}

// IsRevert reports whether err carries a Revert anywhere in its chain.
func IsRevert(err error) bool {
	var r *Revert
	return stderrors.As(err, &r)
}

// RevertReason extracts the reason to report for a failed call. Non-revert
// errors report their full message.
func RevertReason(err error) string {
	if err == nil {
		return ""
	}
	var r *Revert
	if stderrors.As(err, &r) {
		return r.Reason
	}
	return err.Error()
}
