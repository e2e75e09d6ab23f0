package orchestrator

import (
	"errors"
	"testing"
)

func TestIsContextExhaustionErrorMatchesExitStatusOne(t *testing.T) {
	err := errors.New("agent subprocess exited without a terminal result: exit status 1")
	if !isContextExhaustionError(err) {
		t.Fatalf("expected the exit-status-1 signature to be recognized")
	}
}

func TestIsContextExhaustionErrorFalseForUnrelatedError(t *testing.T) {
	err := errors.New("agent subprocess exited without a terminal result: exit status 2")
	if isContextExhaustionError(err) {
		t.Fatalf("expected an unrelated exit status not to be recognized")
	}
}
