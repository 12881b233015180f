package syncx

import (
	"sync"
	"testing"
)

func TestGuardGetSet(t *testing.T) {
	g := NewGuard(map[string]string{"shock": "H1"})

	if got := g.Get(); got["shock"] != "H1" {
		t.Errorf("Get() = %v, want initial map", got)
	}

	g.Set(map[string]string{"wave": "H2"})
	if got := g.Get(); got["wave"] != "H2" || len(got) != 1 {
		t.Errorf("Get() after Set = %v", got)
	}
}

func TestGuardSwap(t *testing.T) {
	g := NewGuard("old")
	if old := g.Swap("new"); old != "old" {
		t.Errorf("Swap returned %q, want %q", old, "old")
	}
	if got := g.Get(); got != "new" {
		t.Errorf("Get() = %q, want %q", got, "new")
	}
}

func TestGuardConcurrent(t *testing.T) {
	g := NewGuard(0)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(v int) {
			defer wg.Done()
			g.Set(v)
		}(i)
		go func() {
			defer wg.Done()
			_ = g.Get()
		}()
	}
	wg.Wait()

	if v := g.Get(); v < 0 || v >= 50 {
		t.Errorf("final value %d out of range", v)
	}
}
