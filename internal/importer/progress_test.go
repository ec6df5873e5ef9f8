package importer

import (
	"sync"
	"testing"
)

func TestProgressRatio(t *testing.T) {
	tests := []struct {
		name string
		p    Progress
		want float64
	}{
		{"no total yet", Progress{State: StateParsing}, 0},
		{"halfway", Progress{Processed: 5, Total: 10, State: StateCommitting}, 0.5},
		{"complete", Progress{Processed: 10, Total: 10, State: StateCompleted}, 1},
		{"terminal without rows", Progress{State: StateFailed}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.p.Ratio(); got != tt.want {
				t.Errorf("Ratio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTrackerMonotonicAndFinal(t *testing.T) {
	tr := newProgressTracker("sess-1")
	tr.update(func(p *Progress) {
		p.State = StateValidating
		p.TotalRows = 3
		p.Total = 6
	})

	ch := tr.subscribe()

	last := -1
	done := make(chan struct{})
	go func() {
		defer close(done)
		for p := range ch {
			if p.Processed < last {
				t.Errorf("progress went backwards: %d after %d", p.Processed, last)
			}
			last = p.Processed
		}
	}()

	for i := 0; i < 4; i++ {
		tr.update(func(p *Progress) { p.Processed++ })
	}
	tr.finish(StateCompleted)
	<-done

	final := tr.snapshot()
	if final.State != StateCompleted {
		t.Errorf("final state = %q, want completed", final.State)
	}
	// finish forces the counter to the denominator
	if final.Processed != final.Total {
		t.Errorf("final Processed = %d, want Total %d", final.Processed, final.Total)
	}
	if final.Ratio() != 1 {
		t.Errorf("final Ratio() = %v, want 1", final.Ratio())
	}
}

func TestSubscribeAfterFinish(t *testing.T) {
	tr := newProgressTracker("sess-2")
	tr.finish(StateFailed)

	ch := tr.subscribe()

	// The current snapshot is delivered, then the channel closes
	p, ok := <-ch
	if !ok {
		t.Fatal("expected one snapshot before close")
	}
	if p.State != StateFailed {
		t.Errorf("snapshot state = %q, want failed", p.State)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should be closed after the snapshot")
	}
}

func TestSubscribeRacingFinish(t *testing.T) {
	// A listener registered just as the session completes must still
	// receive its initial snapshot before the channel is closed; the
	// close must never overtake that send.
	for i := 0; i < 1000; i++ {
		tr := newProgressTracker("sess-race")

		var wg sync.WaitGroup
		wg.Add(2)
		var ch <-chan Progress
		go func() {
			defer wg.Done()
			ch = tr.subscribe()
		}()
		go func() {
			defer wg.Done()
			tr.finish(StateCompleted)
		}()
		wg.Wait()

		if _, ok := <-ch; !ok {
			t.Fatal("channel closed without delivering the initial snapshot")
		}
		for range ch {
		}
	}
}
