package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(42)

	if got := g.Get(); got != 42 {
		t.Errorf("Get() = %d, want 42", got)
	}

	g.Set(100)
	if got := g.Get(); got != 100 {
		t.Errorf("Get() after Set = %d, want 100", got)
	}
}

func TestGuardTrySet(t *testing.T) {
	g := NewGuard("idle")
	notBusy := func(s string) bool { return s != "busy" }

	old, ok := g.TrySet(notBusy, "busy")
	if !ok || old != "idle" {
		t.Fatalf("TrySet = (%q, %v), want (%q, true)", old, ok, "idle")
	}

	old, ok = g.TrySet(notBusy, "busy")
	if ok {
		t.Error("second TrySet should be refused")
	}
	if old != "busy" {
		t.Errorf("refused TrySet returned %q, want %q", old, "busy")
	}
}

func TestGuardTrySetSingleWinner(t *testing.T) {
	g := NewGuard(false)
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := g.TrySet(func(taken bool) bool { return !taken }, true); ok {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("winners = %d, want 1", winners)
	}
}

func TestView(t *testing.T) {
	g := NewGuard([]int{1, 2, 3})

	n := View(g, func(v []int) int { return len(v) })
	if n != 3 {
		t.Errorf("View() = %d, want 3", n)
	}
}

func TestGuardConcurrentSafety(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Write(func(v *int) {
				*v++
			})
		}()
	}

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Get()
		}()
	}

	wg.Wait()

	if got := g.Get(); got != 100 {
		t.Errorf("Get() = %d, want 100", got)
	}
}
