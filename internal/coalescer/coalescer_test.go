package coalescer

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestSubmitAppliesEntries(t *testing.T) {
	var mu sync.Mutex
	var applied []Entry
	c := New(10, func(entries []Entry) error {
		mu.Lock()
		applied = append(applied, entries...)
		mu.Unlock()
		return nil
	})
	defer c.Close()

	errCh := c.Submit([]Entry{{Key: []byte("a"), Value: []byte("1")}})
	if err := <-errCh; err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(applied) != 1 || string(applied[0].Key) != "a" {
		t.Fatalf("unexpected applied entries: %+v", applied)
	}
}

func TestSubmitConcurrentCallersShareOneApplyCall(t *testing.T) {
	var mu sync.Mutex
	var calls int
	var total int

	c := New(1000, func(entries []Entry) error {
		mu.Lock()
		calls++
		total += len(entries)
		mu.Unlock()
		// Hold the worker long enough that other goroutines queue up
		// behind this call, so they end up in the same drained batch.
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	defer c.Close()

	const n = 50
	var wg sync.WaitGroup
	chans := make([]<-chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			chans[i] = c.Submit([]Entry{{Key: []byte{byte(i)}, Value: []byte("v")}})
		}(i)
	}
	wg.Wait()

	for _, ch := range chans {
		if err := <-ch; err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if total != n {
		t.Fatalf("expected %d entries applied total, got %d", n, total)
	}
	if calls >= n {
		t.Fatalf("expected coalescing to reduce apply call count below %d, got %d", n, calls)
	}
}

func TestSubmitPropagatesApplyError(t *testing.T) {
	wantErr := errors.New("boom")
	c := New(4, func(entries []Entry) error { return wantErr })
	defer c.Close()

	err := <-c.Submit([]Entry{{Key: []byte("a")}})
	if !errors.Is(err, wantErr) {
		t.Fatalf("got error %v, want %v", err, wantErr)
	}
}

func TestCloseAnswersRacingSubmits(t *testing.T) {
	c := New(4, func(entries []Entry) error { return nil })

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			ch := c.Submit([]Entry{{Key: []byte("x")}})
			<-ch
		}
		close(done)
	}()

	c.Close()
	<-done
}
