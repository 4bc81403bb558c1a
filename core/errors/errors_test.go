package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestUnauthorizedIsDistinctFromRevert(t *testing.T) {
	caller := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	err := Unauthorized(caller)
	if !stderrors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if IsRevert(err) {
		t.Fatalf("authorization failure must not be a revert")
	}
	if !strings.Contains(err.Error(), "UnauthorizedAccount") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRevertReasonThroughWrapping(t *testing.T) {
	err := fmt.Errorf("subscription: %w", Revertf("Max supply reached!"))
	if !IsRevert(err) {
		t.Fatalf("expected revert")
	}
	if got := RevertReason(err); got != "Max supply reached!" {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := RevertReason(stderrors.New("boom")); got != "boom" {
		t.Fatalf("unexpected reason %q", got)
	}
	if RevertReason(nil) != "" {
		t.Fatalf("nil error should have empty reason")
	}
}
