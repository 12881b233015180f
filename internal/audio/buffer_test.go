package audio

import (
	"sync"
	"testing"
)

func TestBufferAppendDrain(t *testing.T) {
	b := NewCaptureBuffer(0)

	b.Append([]float32{0.1, 0.2})
	b.Append([]float32{0.3})

	if b.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", b.Len())
	}

	got := b.Drain()
	if len(got) != 3 || got[0] != 0.1 || got[2] != 0.3 {
		t.Errorf("Drain() = %v", got)
	}
	if b.Len() != 0 {
		t.Errorf("Len() after drain = %d, want 0", b.Len())
	}
	if again := b.Drain(); len(again) != 0 {
		t.Errorf("second Drain() = %v, want empty", again)
	}
}

func TestBufferOverflowDropsOldest(t *testing.T) {
	b := NewCaptureBuffer(4)

	var dropped int
	b.OnOverflow(func(n int) { dropped += n })

	b.Append([]float32{1, 2, 3})
	b.Append([]float32{4, 5, 6})

	if dropped != 2 {
		t.Errorf("dropped = %d, want 2", dropped)
	}
	got := b.Drain()
	want := []float32{3, 4, 5, 6}
	if len(got) != len(want) {
		t.Fatalf("Drain() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Drain()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
	if b.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", b.Dropped())
	}
}

// Every appended sample must be returned by exactly one drain, even with
// concurrent appenders.
func TestBufferConcurrentAppendDrain(t *testing.T) {
	b := NewCaptureBuffer(0)

	const writers = 4
	const perWriter = 1000

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				b.Append([]float32{1})
			}
		}()
	}

	done := make(chan struct{})
	total := 0
	go func() {
		defer close(done)
		for total < writers*perWriter {
			total += len(b.Drain())
		}
	}()

	wg.Wait()
	<-done

	if total != writers*perWriter {
		t.Errorf("drained %d samples, want %d", total, writers*perWriter)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d after full drain", b.Len())
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		in       []float32
		wantPeak float32
	}{
		{"quiet signal boosted", []float32{0.1, -0.05, 0.02}, normalizeTarget},
		{"loud signal attenuated", []float32{2.0, -1.5}, normalizeTarget},
		{"silence untouched", []float32{0, 0.00001, -0.00001}, 0.00001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Normalize(tt.in)

			var peak float32
			for _, s := range tt.in {
				if s < 0 {
					s = -s
				}
				if s > peak {
					peak = s
				}
			}
			if diff := peak - tt.wantPeak; diff > 1e-4 || diff < -1e-4 {
				t.Errorf("peak after normalize = %v, want %v", peak, tt.wantPeak)
			}
		})
	}
}

func TestNormalizeEmpty(t *testing.T) {
	if gain := Normalize(nil); gain != 1 {
		t.Errorf("Normalize(nil) gain = %v, want 1", gain)
	}
}
