package ring

import "testing"

func TestBuffer_PushAndEvict(t *testing.T) {
	b := New(3)

	b.Push(1)
	b.Push(2)
	if b.Len() != 2 {
		t.Errorf("expected len 2, got %d", b.Len())
	}

	b.Push(3)
	b.Push(4) // evicts 1

	if b.Len() != 3 {
		t.Errorf("expected len 3 after overflow, got %d", b.Len())
	}

	got := b.Values()
	want := []float64{2, 3, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("values[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	b := New(50)
	for i := 0; i < 500; i++ {
		b.Push(float64(i))
		if b.Len() > 50 {
			t.Fatalf("len %d exceeds capacity after %d pushes", b.Len(), i+1)
		}
	}
	if b.Len() != 50 {
		t.Errorf("expected exactly 50 samples, got %d", b.Len())
	}
	if v, ok := b.Last(); !ok || v != 499 {
		t.Errorf("expected last=499, got %v (ok=%v)", v, ok)
	}
}

func TestBuffer_Reset(t *testing.T) {
	b := New(4)
	b.Push(10)
	b.Push(11)
	b.Push(12)

	b.Reset(100)

	if b.Len() != 1 {
		t.Errorf("expected single seed sample, got %d", b.Len())
	}
	if v, _ := b.Last(); v != 100 {
		t.Errorf("expected seed 100, got %v", v)
	}
}

func TestBuffer_Fill(t *testing.T) {
	t.Run("Shorter Than Capacity", func(t *testing.T) {
		b := New(5)
		b.Fill([]float64{1, 2, 3})
		if b.Len() != 3 {
			t.Errorf("expected 3 samples, got %d", b.Len())
		}
	})

	t.Run("Longer Than Capacity Keeps Newest", func(t *testing.T) {
		b := New(3)
		b.Fill([]float64{1, 2, 3, 4, 5})
		got := b.Values()
		want := []float64{3, 4, 5}
		if len(got) != 3 {
			t.Fatalf("expected 3 samples, got %d", len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("values[%d]: expected %v, got %v", i, want[i], got[i])
			}
		}
	})
}

func TestBuffer_InvalidCapacity(t *testing.T) {
	b := New(0)
	if b.Cap() != 1 {
		t.Errorf("expected fallback capacity 1, got %d", b.Cap())
	}
}
