package core

import (
	"testing"
	"time"
)

func TestRetryPolicyDelay(t *testing.T) {
	policy := RetryPolicy{BaseInterval: 3600 * time.Second, Multiplier: 2.0}

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{1, 3600 * time.Second},  // 3600 * 2^0
		{2, 7200 * time.Second},  // 3600 * 2^1
		{5, 57600 * time.Second}, // 3600 * 2^4, below the cap
		{7, 86400 * time.Second}, // 3600 * 2^6 = 230400, capped
		{0, 3600 * time.Second},  // clamped to first attempt
	}

	for _, tt := range tests {
		got := policy.Delay(tt.retryCount)
		if got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestRetryPolicyCapIgnoresConfiguration(t *testing.T) {
	policy := RetryPolicy{BaseInterval: 12 * time.Hour, Multiplier: 10.0}

	if got := policy.Delay(5); got != 24*time.Hour {
		t.Errorf("Delay(5) = %v, want cap of 24h", got)
	}
}

func TestRetryPolicyMultiplierBelowOne(t *testing.T) {
	policy := RetryPolicy{BaseInterval: time.Hour, Multiplier: 0.5}

	if got := policy.Delay(3); got != time.Hour {
		t.Errorf("Delay(3) with sub-1 multiplier = %v, want %v", got, time.Hour)
	}
}

func TestRetryAt(t *testing.T) {
	policy := RetryPolicy{BaseInterval: time.Hour, Multiplier: 2.0}
	now := time.Unix(1000000, 0)

	got := policy.RetryAt(now, 2)
	want := now.Add(2 * time.Hour)
	if !got.Equal(want) {
		t.Errorf("RetryAt(now, 2) = %v, want %v", got, want)
	}
}
