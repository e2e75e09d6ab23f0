package orchestrator

import (
	"errors"
	"testing"
	"time"
)

func TestRetryAfterDelayExtractsAdvertisedSeconds(t *testing.T) {
	delay, ok := retryAfterDelay(errors.New("too many requests: retry after 12 seconds"))
	if !ok {
		t.Fatalf("expected a rate-limit classification")
	}
	if delay != 12*time.Second {
		t.Fatalf("got %v", delay)
	}
}

func TestRetryAfterDelayDefaultsWhenNoHint(t *testing.T) {
	delay, ok := retryAfterDelay(errors.New("too many requests"))
	if !ok || delay != defaultRetryDelay {
		t.Fatalf("got %v, %v", delay, ok)
	}
}

func TestRetryAfterDelayFalseForUnrelatedError(t *testing.T) {
	_, ok := retryAfterDelay(errors.New("connection reset by peer"))
	if ok {
		t.Fatalf("expected non-rate-limit error to be passed through")
	}
}
