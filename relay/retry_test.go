// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fastRetry keeps test backoff delays negligible.
func fastRetry(attempts int) RetryConfig {
	return RetryConfig{Attempts: attempts, BaseDelay: time.Nanosecond}
}

func TestRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), "op", func(context.Context) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetryRetriesTransientUntilExhausted(t *testing.T) {
	calls := 0
	wantErr := Transient(fmt.Errorf("relay down"))
	err := Retry(context.Background(), fastRetry(3), "op", func(context.Context) error {
		calls++
		return wantErr
	})
	if err == nil {
		t.Fatal("Retry succeeded, want exhaustion error")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryRecoversAfterTransientFailure(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(fmt.Errorf("hiccup"))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetryDoesNotRetryPermanentErrors(t *testing.T) {
	calls := 0
	permanent := fmt.Errorf("signature invalid")
	err := Retry(context.Background(), fastRetry(3), "op", func(context.Context) error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Retry error = %v, want the permanent error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry of permanent errors)", calls)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := Retry(ctx, RetryConfig{Attempts: 3, BaseDelay: time.Minute}, "op", func(context.Context) error {
		calls++
		cancel() // cancel during the first attempt; the backoff wait must abort
		return Transient(fmt.Errorf("down"))
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Retry error = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestTransientMarking(t *testing.T) {
	if Transient(nil) != nil {
		t.Error("Transient(nil) != nil")
	}
	base := fmt.Errorf("base")
	marked := Transient(base)
	if !IsTransient(marked) {
		t.Error("IsTransient(Transient(err)) = false")
	}
	if !IsTransient(fmt.Errorf("wrapped: %w", marked)) {
		t.Error("transient marker lost through wrapping")
	}
	if IsTransient(base) {
		t.Error("unmarked error reported transient")
	}
	if !errors.Is(marked, base) {
		t.Error("Transient does not unwrap to the base error")
	}
}
