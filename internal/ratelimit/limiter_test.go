package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func fixedClock(l *Limiter) *time.Time {
	now := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)
	l.nowFunc = func() time.Time { return now }
	return &now
}

func TestAllow_Burst(t *testing.T) {
	l := NewLimiter(1.0, 3)
	for i := 0; i < 3; i++ {
		if !l.Allow("k") {
			t.Errorf("request %d should be allowed (within burst)", i+1)
		}
	}
	if l.Allow("k") {
		t.Error("request after burst exhaustion should be rejected")
	}
}

func TestAllow_Refill(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		burst   int
		used    int
		advance time.Duration
		want    []bool
	}{
		{"refills after wait", 10, 2, 2, 200 * time.Millisecond, []bool{true, true, false}},
		{"capped at burst", 100, 3, 3, 10 * time.Second, []bool{true, true, true, false}},
		{"partial refill", 2, 5, 3, 250 * time.Millisecond, []bool{true, true, false}},
		{"zero rate never refills", 0, 2, 2, time.Hour, []bool{false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.rate, tt.burst)
			now := fixedClock(l)
			for i := 0; i < tt.used; i++ {
				l.Allow("k")
			}
			*now = now.Add(tt.advance)
			for i, want := range tt.want {
				if got := l.Allow("k"); got != want {
					t.Errorf("Allow() #%d = %v, want %v", i+1, got, want)
				}
			}
		})
	}
}

func TestAllow_IndependentKeys(t *testing.T) {
	l := NewLimiter(1.0, 1)
	l.Allow("a")
	if l.Allow("a") {
		t.Error("a should be exhausted")
	}
	if !l.Allow("b") {
		t.Error("b should have its own bucket")
	}
}

func TestTokens(t *testing.T) {
	l := NewLimiter(1.0, 4)
	now := fixedClock(l)
	if got := l.Tokens("k"); got != 4 {
		t.Errorf("Tokens() = %v, want 4", got)
	}
	l.Allow("k")
	l.Allow("k")
	*now = now.Add(500 * time.Millisecond)
	if got := l.Tokens("k"); got != 2.5 {
		t.Errorf("Tokens() = %v, want 2.5", got)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	l := NewLimiter(0, 50)
	fixedClock(l)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.Allow("k") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestToolLimiters_Check(t *testing.T) {
	tl := NewToolLimiters(map[string]Limit{"run": {PerMinute: 6, Burst: 1}})

	if err := tl.Check("run"); err != nil {
		t.Fatalf("first Check() error = %v", err)
	}
	if err := tl.Check("run"); !errors.Is(err, ErrLimited) {
		t.Errorf("second Check() error = %v, want ErrLimited", err)
	}
	if err := tl.Check("unconfigured"); err != nil {
		t.Errorf("Check(unconfigured) error = %v, want nil", err)
	}
	if got := tl["run"].rate; got != 0.1 {
		t.Errorf("rate = %v, want 0.1 tokens/sec", got)
	}
}
