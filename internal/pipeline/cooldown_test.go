package pipeline

import (
	"testing"
	"time"
)

func TestGateFirstTriggerFires(t *testing.T) {
	g := NewGate(time.Minute)
	now := time.Now()

	if !g.Allow("a", now) {
		t.Error("first trigger should fire")
	}
	if !g.Allow("b", now) {
		t.Error("ids are independent, first trigger for b should fire")
	}
}

func TestGateRepeatInsideWindowArmsCooldown(t *testing.T) {
	g := NewGate(time.Minute)
	t0 := time.Unix(1000, 0)

	if !g.Allow("a", t0) {
		t.Fatal("first trigger should fire")
	}

	// Repeat 10s later: suppressed, cooldown armed until t0+70s.
	if g.Allow("a", t0.Add(10*time.Second)) {
		t.Error("repeat inside window should be suppressed")
	}
	// Still inside the armed cooldown.
	if g.Allow("a", t0.Add(30*time.Second)) {
		t.Error("trigger during armed cooldown should be suppressed")
	}
	// Past the original window but the armed cooldown runs to t0+70s.
	if g.Allow("a", t0.Add(65*time.Second)) {
		t.Error("armed cooldown extends past the original window")
	}
	// Cooldown expired.
	if !g.Allow("a", t0.Add(75*time.Second)) {
		t.Error("trigger after cooldown expiry should fire")
	}
}

func TestGateQuietWindowAllowsRefire(t *testing.T) {
	g := NewGate(time.Minute)
	t0 := time.Unix(1000, 0)

	if !g.Allow("a", t0) {
		t.Fatal("first trigger should fire")
	}
	if !g.Allow("a", t0.Add(61*time.Second)) {
		t.Error("trigger after a full quiet window should fire")
	}
}

func TestGateZeroWindowDisabled(t *testing.T) {
	g := NewGate(0)
	now := time.Now()
	for i := 0; i < 3; i++ {
		if !g.Allow("a", now) {
			t.Fatal("zero window must never suppress")
		}
	}
}

func TestGateRemaining(t *testing.T) {
	g := NewGate(time.Minute)
	t0 := time.Unix(1000, 0)

	if g.Remaining("a", t0) != 0 {
		t.Error("unknown id should have zero remaining")
	}

	g.Allow("a", t0)
	if got := g.Remaining("a", t0.Add(20*time.Second)); got != 40*time.Second {
		t.Errorf("remaining = %v, want 40s", got)
	}

	// Arm the cooldown at t0+10s, so it runs to t0+70s.
	g.Allow("a", t0.Add(10*time.Second))
	if got := g.Remaining("a", t0.Add(30*time.Second)); got != 40*time.Second {
		t.Errorf("remaining after arming = %v, want 40s", got)
	}
	if g.Remaining("a", t0.Add(80*time.Second)) != 0 {
		t.Error("remaining after expiry should be zero")
	}
}
