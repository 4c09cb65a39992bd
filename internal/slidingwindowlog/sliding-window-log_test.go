package slidingwindowlog_test

import (
	"errors"
	"testing"
	"time"

	"learn.windowlimiter/internal/slidingwindowlog"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		window  time.Duration
		limit   int64
		wantErr bool
	}{
		{"Valid", 10 * time.Second, 1, false},
		{"ZeroWindow", 0, 1, true},
		{"NegativeWindow", -time.Second, 1, true},
		{"ZeroLimit", time.Second, 0, true},
		{"NegativeLimit", time.Second, -3, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := slidingwindowlog.Validate(tc.window, tc.limit)
			if tc.wantErr {
				if err == nil {
					t.Fatal("Expected an error but got nil")
				}
				if !errors.Is(err, slidingwindowlog.ErrInvalidConfig) {
					t.Fatalf("Expected ErrInvalidConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
		})
	}
}

func TestExpired_InclusiveBoundary(t *testing.T) {
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	window := 10 * time.Second

	if slidingwindowlog.Expired(base, base.Add(9999*time.Millisecond), window) {
		t.Fatal("Timestamp should still be live just before one window has passed")
	}
	if !slidingwindowlog.Expired(base, base.Add(window), window) {
		t.Fatal("Timestamp exactly one window old should be expired")
	}
	if !slidingwindowlog.Expired(base, base.Add(11*time.Second), window) {
		t.Fatal("Timestamp older than the window should be expired")
	}
}

func TestWaitTime(t *testing.T) {
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	window := 10 * time.Second

	if got := slidingwindowlog.WaitTime(base, base.Add(5*time.Second), window); got != 5*time.Second {
		t.Fatalf("Expected 5s, got %s", got)
	}
	if got := slidingwindowlog.WaitTime(base, base.Add(9999*time.Millisecond), window); got != time.Millisecond {
		t.Fatalf("Expected 1ms, got %s", got)
	}
	if got := slidingwindowlog.WaitTime(base, base.Add(12*time.Second), window); got != 0 {
		t.Fatalf("Expected wait to clamp at zero, got %s", got)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		wait time.Duration
		want int
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{time.Second, 1},
		{1500 * time.Millisecond, 2},
		{5 * time.Second, 5},
	}
	for _, tc := range tests {
		if got := slidingwindowlog.RetryAfterSeconds(tc.wait); got != tc.want {
			t.Errorf("RetryAfterSeconds(%s) = %d, want %d", tc.wait, got, tc.want)
		}
	}
}
