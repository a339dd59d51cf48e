package router

import (
	"testing"
	"time"
)

func TestQueue_FIFOAcrossGrowth(t *testing.T) {
	q := NewQueue[int](2, 0)

	// Wrap the ring before it grows.
	q.Push(1)
	q.Push(2)
	if v, _ := q.Pop(); v != 1 {
		t.Fatalf("Pop = %d, want 1", v)
	}
	for i := 3; i <= 6; i++ {
		if !q.Push(i) {
			t.Fatalf("Push(%d) rejected", i)
		}
	}

	for want := 2; want <= 6; want++ {
		got, ok := q.Pop()
		if !ok || got != want {
			t.Fatalf("Pop = %d, %v, want %d, true", got, ok, want)
		}
	}

	stats := q.Stats()
	if stats.Resizes == 0 {
		t.Error("expected the queue to grow")
	}
	if stats.Pushed != 6 || stats.Popped != 6 {
		t.Errorf("Pushed = %d, Popped = %d, want 6 and 6", stats.Pushed, stats.Popped)
	}
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue[string](1, 0)

	got := make(chan string, 1)
	go func() {
		v, _ := q.Pop()
		got <- v
	}()

	select {
	case v := <-got:
		t.Fatalf("Pop returned %q before Push", v)
	case <-time.After(20 * time.Millisecond):
	}

	q.Push("x")

	select {
	case v := <-got:
		if v != "x" {
			t.Errorf("Pop = %q, want x", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](4, 0)
	q.Push(1)
	q.Close()

	if q.Push(2) {
		t.Error("Push after Close should fail")
	}
	if v, ok := q.Pop(); !ok || v != 1 {
		t.Errorf("Pop = %d, %v, want 1, true", v, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop on closed empty queue should return false")
	}
	if q.Len() != 0 {
		t.Errorf("Len = %d, want 0", q.Len())
	}
}
