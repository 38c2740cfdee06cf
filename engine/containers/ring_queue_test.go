package containers

import (
	"errors"
	"testing"
)

func TestRingQueueFIFO(t *testing.T) {
	rq := NewRingQueue[uint32](3)
	for _, v := range []uint32{5, 6, 7} {
		if err := rq.Enqueue(v); err != nil {
			t.Fatal(err)
		}
	}
	if err := rq.Enqueue(8); !errors.Is(err, ErrQueueFull) {
		t.Errorf("Enqueue on full = %v", err)
	}
	if v, _ := rq.Peek(); v != 5 {
		t.Errorf("Peek = %d", v)
	}

	// wrap around the backing array
	v, _ := rq.Dequeue()
	rq.Enqueue(8)
	want := []uint32{6, 7, 8}
	if v != 5 {
		t.Errorf("first Dequeue = %d", v)
	}
	for _, w := range want {
		got, err := rq.Dequeue()
		if err != nil || got != w {
			t.Fatalf("Dequeue = %d, %v, want %d", got, err, w)
		}
	}
	if _, err := rq.Dequeue(); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("Dequeue on empty = %v", err)
	}
}

func TestRingQueueClear(t *testing.T) {
	rq := NewRingQueue[int](2)
	rq.Enqueue(1)
	rq.Enqueue(2)
	rq.Clear()
	if !rq.IsEmpty() || rq.Len() != 0 {
		t.Fatal("Clear left elements behind")
	}
	rq.Enqueue(3)
	if v, _ := rq.Dequeue(); v != 3 {
		t.Errorf("Dequeue after Clear = %d", v)
	}
}
