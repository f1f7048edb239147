package store

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsOnlyLastTask(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var mu sync.Mutex
	var got []int
	for i := 1; i <= 5; i++ {
		i := i
		s.Schedule("k", 20*time.Millisecond, func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	s.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != 5 {
		t.Errorf("ran %v, want [5]", got)
	}
}

func TestSchedulerKeysAreIndependent(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var a, b atomic.Int32
	s.Schedule("a", time.Millisecond, func() { a.Add(1) })
	s.Schedule("b", time.Millisecond, func() { b.Add(1) })
	s.Wait()

	if a.Load() != 1 || b.Load() != 1 {
		t.Errorf("a=%d b=%d, want 1 each", a.Load(), b.Load())
	}
}

func TestSchedulerCancel(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var ran atomic.Bool
	s.Schedule("k", 10*time.Millisecond, func() { ran.Store(true) })
	if !s.Pending("k") {
		t.Fatal("expected task to be pending")
	}
	if !s.Cancel("k") {
		t.Fatal("Cancel reported nothing pending")
	}
	if s.Cancel("k") {
		t.Error("second Cancel should report false")
	}
	s.Wait()
	time.Sleep(20 * time.Millisecond)

	if ran.Load() {
		t.Error("cancelled task ran")
	}
	if s.Pending("k") {
		t.Error("cancelled task still pending")
	}
}

func TestSchedulerFlush(t *testing.T) {
	s := NewScheduler()
	defer s.Close()

	var ran atomic.Int32
	s.Schedule("k", time.Hour, func() { ran.Add(1) })

	if !s.Flush("k") {
		t.Fatal("Flush reported nothing pending")
	}
	if ran.Load() != 1 {
		t.Fatalf("ran %d times after Flush, want 1", ran.Load())
	}
	if s.Flush("k") {
		t.Error("second Flush should report false")
	}
	s.Wait()
	if ran.Load() != 1 {
		t.Errorf("ran %d times, want 1", ran.Load())
	}
}

func TestSchedulerClose(t *testing.T) {
	s := NewScheduler()

	var ran atomic.Bool
	s.Schedule("k", 10*time.Millisecond, func() { ran.Store(true) })
	s.Close()

	if s.Schedule("k", time.Millisecond, func() { ran.Store(true) }) {
		t.Error("Schedule after Close should report false")
	}
	s.Wait()
	time.Sleep(20 * time.Millisecond)

	if ran.Load() {
		t.Error("task ran after Close")
	}
}
