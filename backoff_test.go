package loadable

import (
	"testing"
	"time"
)

func TestBackoffPolicy_GrowthIsDeterministic(t *testing.T) {
	b := NewBackoffPolicy(time.Second, 8*time.Second, 2, 5*time.Second)

	want := []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		if got := b.NextTimeout(true); got != w {
			t.Errorf("failure #%d: got %v, want %v", i+1, got, w)
		}
	}
}

func TestBackoffPolicy_SuccessResetsWindow(t *testing.T) {
	b := NewBackoffPolicy(time.Second, 8*time.Second, 2, 5*time.Second)
	b.NextTimeout(true)
	b.NextTimeout(true)
	b.NextTimeout(true)

	if got := b.NextTimeout(false); got != 5*time.Second {
		t.Errorf("expected the steady-state period, got %v", got)
	}
	if got := b.NextTimeout(true); got != time.Second {
		t.Errorf("expected the window back at min, got %v", got)
	}
}

func TestBackoffPolicy_Reset(t *testing.T) {
	b := NewBackoffPolicy(time.Second, 8*time.Second, 2, 0)
	b.NextTimeout(true)
	b.NextTimeout(true)
	b.Reset()
	if got := b.NextTimeout(true); got != time.Second {
		t.Errorf("expected the window back at min, got %v", got)
	}
}

func TestBackoffPolicy_ZeroPeriodDisablesResync(t *testing.T) {
	b := NewBackoffPolicy(time.Second, 8*time.Second, 2, 0)
	if got := b.NextTimeout(false); got != 0 {
		t.Errorf("expected 0 for a disabled period, got %v", got)
	}
}

func TestNewBackoffPolicy_RejectsInvalidWindows(t *testing.T) {
	cases := []struct {
		name        string
		min, max    time.Duration
		multiplier  float64
		period      time.Duration
	}{
		{"zero min", 0, time.Second, 2, 0},
		{"max below min", 2 * time.Second, time.Second, 2, 0},
		{"shrinking multiplier", time.Second, 8 * time.Second, 0.5, 0},
		{"negative period", time.Second, 8 * time.Second, 2, -time.Second},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			defer func() {
				if recover() == nil {
					t.Error("expected a panic")
				}
			}()
			NewBackoffPolicy(c.min, c.max, c.multiplier, c.period)
		})
	}
}
