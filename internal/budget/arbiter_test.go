package budget

import (
	"sync"
	"testing"
)

func TestReserveGrantsUpToRemaining(t *testing.T) {
	a := NewArbiter(5)

	if got := a.Reserve(3); got != 3 {
		t.Fatalf("first reserve = %d, want 3", got)
	}
	if got := a.Reserve(3); got != 2 {
		t.Fatalf("second reserve = %d, want 2", got)
	}
	if got := a.Reserve(1); got != 0 {
		t.Fatalf("exhausted reserve = %d, want 0", got)
	}
	if !a.Exhausted() {
		t.Error("arbiter should report exhausted")
	}
}

func TestReserveNonPositive(t *testing.T) {
	a := NewArbiter(5)
	if got := a.Reserve(0); got != 0 {
		t.Errorf("Reserve(0) = %d, want 0", got)
	}
	if got := a.Reserve(-2); got != 0 {
		t.Errorf("Reserve(-2) = %d, want 0", got)
	}
	if remaining, _ := a.Snapshot(); remaining != 5 {
		t.Errorf("remaining = %d, want 5", remaining)
	}
}

func TestRestoreReturnsShortfall(t *testing.T) {
	a := NewArbiter(4)
	granted := a.Reserve(4)
	if granted != 4 {
		t.Fatalf("granted = %d", granted)
	}
	// Only one of the four reserved slots turned into a new article.
	a.Restore(3)

	if got := a.Reserve(5); got != 3 {
		t.Errorf("post-restore reserve = %d, want 3", got)
	}
}

func TestUnboundedGrantsEverything(t *testing.T) {
	a := NewUnbounded()
	if got := a.Reserve(1000); got != 1000 {
		t.Errorf("unbounded reserve = %d, want 1000", got)
	}
	if a.Exhausted() {
		t.Error("unbounded arbiter can never be exhausted")
	}
	if _, unbounded := a.Snapshot(); !unbounded {
		t.Error("Snapshot should report unbounded")
	}
	a.Restore(10)
	a.ConsumeOutsideReservation(10)
	if a.Exhausted() {
		t.Error("restore/consume must not bound an unbounded arbiter")
	}
}

func TestNegativeTargetClampsToZero(t *testing.T) {
	a := NewArbiter(-3)
	if !a.Exhausted() {
		t.Error("negative target should start exhausted")
	}
	if got := a.Reserve(1); got != 0 {
		t.Errorf("reserve against negative target = %d, want 0", got)
	}
}

func TestConsumeOutsideReservationClamps(t *testing.T) {
	a := NewArbiter(2)
	a.ConsumeOutsideReservation(5)
	if remaining, _ := a.Snapshot(); remaining != 0 {
		t.Errorf("remaining = %d, want 0", remaining)
	}
}

func TestConcurrentReservationsNeverOvergrant(t *testing.T) {
	const target = 100
	const workers = 20

	a := NewArbiter(target)
	granted := make([]int, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			for {
				g := a.Reserve(3)
				if g == 0 {
					return
				}
				granted[slot] += g
			}
		}(i)
	}
	wg.Wait()

	total := 0
	for _, g := range granted {
		total += g
	}
	if total != target {
		t.Errorf("total granted = %d, want exactly %d", total, target)
	}
}
