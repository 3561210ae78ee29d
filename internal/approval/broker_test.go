package approval

import (
	"sync"
	"testing"
	"time"
)

func TestRegisterResolve(t *testing.T) {
	b := NewBroker()
	p := NewPending("rm -rf ./tmp", "/home/u/work", "dangerous")

	ch := b.Register(p)
	if b.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", b.Len())
	}

	if !b.Resolve(p.ID, true) {
		t.Fatal("Resolve() = false, want true for registered id")
	}

	select {
	case approved := <-ch:
		if !approved {
			t.Error("decision = false, want true")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no decision delivered")
	}

	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0 after resolution", b.Len())
	}
}

func TestResolveAtMostOnce(t *testing.T) {
	b := NewBroker()
	p := NewPending("sudo ls", "/home/u/work", "sudo")
	b.Register(p)

	if got := b.Resolve(p.ID, true); !got {
		t.Error("first Resolve() = false, want true")
	}
	if got := b.Resolve(p.ID, true); got {
		t.Error("second Resolve() = true, want false (at-most-once)")
	}
}

func TestResolveUnknownID(t *testing.T) {
	b := NewBroker()
	if b.Resolve("nope", true) {
		t.Error("Resolve() of unknown id = true, want false")
	}
}

func TestRemoveBlocksLateResolve(t *testing.T) {
	b := NewBroker()
	p := NewPending("sudo ls", "/home/u/work", "sudo")
	ch := b.Register(p)

	// Simulate the waiter's timeout firing first.
	if !b.Remove(p.ID) {
		t.Fatal("Remove() = false, want true for registered id")
	}
	if b.Remove(p.ID) {
		t.Error("second Remove() = true, want false")
	}

	// A late external resolve must be a no-op.
	if b.Resolve(p.ID, true) {
		t.Error("Resolve() after Remove() = true, want false")
	}

	select {
	case v := <-ch:
		t.Errorf("channel received %v after Remove, want nothing", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPendingSnapshotOrder(t *testing.T) {
	b := NewBroker()

	first := Pending{ID: "a", Command: "x", RequestedAt: time.Now().Add(-2 * time.Second)}
	second := Pending{ID: "b", Command: "y", RequestedAt: time.Now().Add(-1 * time.Second)}
	// Register newest first to prove ordering comes from timestamps.
	b.Register(second)
	b.Register(first)

	got := b.Pending()
	if len(got) != 2 {
		t.Fatalf("Pending() len = %d, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Pending() order = [%s %s], want [a b]", got[0].ID, got[1].ID)
	}
}

func TestConcurrentResolveSingleWinner(t *testing.T) {
	b := NewBroker()
	p := NewPending("sudo ls", "/home/u/work", "sudo")
	b.Register(p)

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan bool, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- b.Resolve(p.ID, true)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Errorf("%d racers won, want exactly 1", wins)
	}
}

func TestNewPendingUniqueIDs(t *testing.T) {
	a := NewPending("x", "/", "")
	b := NewPending("x", "/", "")
	if a.ID == "" || a.ID == b.ID {
		t.Errorf("ids not unique: %q vs %q", a.ID, b.ID)
	}
}
