package utils

import (
	"errors"
	"testing"
	"time"

	"escalation-service/internal/logging"
)

func TestRetrySucceedsAfterFailures(t *testing.T) {
	attempts := 0
	err := Retry(logging.Discard(), 3, time.Millisecond, func() error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRetryExhausted(t *testing.T) {
	sentinel := errors.New("permanent")
	attempts := 0
	err := Retry(logging.Discard(), 2, time.Millisecond, func() error {
		attempts++
		return sentinel
	})
	if err == nil {
		t.Fatal("Retry should fail once attempts are exhausted")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("err = %v, want wrapped %v", err, sentinel)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryStopsOnFirstSuccess(t *testing.T) {
	attempts := 0
	if err := Retry(logging.Discard(), 5, time.Millisecond, func() error {
		attempts++
		return nil
	}); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
