package parallel

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name    string
		n, t    int
		wantLen []int
	}{
		{name: "even", n: 12, t: 4, wantLen: []int{3, 3, 3, 3}},
		{name: "uneven", n: 10, t: 4, wantLen: []int{2, 3, 2, 3}},
		{name: "fewer items than workers", n: 2, t: 4, wantLen: []int{0, 1, 0, 1}},
		{name: "empty", n: 0, t: 3, wantLen: []int{0, 0, 0}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			prevEnd := 0
			for i := 0; i < tc.t; i++ {
				start, end := Split(i, tc.n, tc.t)
				if start != prevEnd {
					t.Errorf("worker %d starts at %d, want %d (gap or overlap)", i, start, prevEnd)
				}
				if got := end - start; got != tc.wantLen[i] {
					t.Errorf("worker %d len = %d, want %d", i, got, tc.wantLen[i])
				}
				prevEnd = end
			}
			if prevEnd != tc.n {
				t.Errorf("ranges end at %d, want %d", prevEnd, tc.n)
			}
		})
	}
}

func TestDispatcher_CoversEveryIndexOnce(t *testing.T) {
	const n = 1000
	hits := make([]int32, n)

	d := NewDispatcher(func(_, start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, 4)
	defer d.Close()

	for round := 0; round < 5; round++ {
		d.Run(n)
	}

	for i, h := range hits {
		if h != 5 {
			t.Fatalf("index %d processed %d times, want 5", i, h)
		}
	}
}

func TestDispatcher_WorkerIDsMatchRanges(t *testing.T) {
	const workers = 3
	var mu sync.Mutex
	seen := make(map[int][2]int)

	d := NewDispatcher(func(id, start, end int) {
		mu.Lock()
		seen[id] = [2]int{start, end}
		mu.Unlock()
	}, workers)
	defer d.Close()

	d.Run(9)

	for id := 0; id < workers; id++ {
		wantStart, wantEnd := Split(id, 9, workers)
		if got := seen[id]; got != [2]int{wantStart, wantEnd} {
			t.Errorf("worker %d got range %v, want [%d %d)", id, got, wantStart, wantEnd)
		}
	}
}

func TestDispatcher_OnCompleteFiresOncePerDispatch(t *testing.T) {
	var completions int32
	d := NewDispatcher(func(_, _, _ int) {}, 4)
	defer d.Close()

	d.SetOnComplete(func() {
		atomic.AddInt32(&completions, 1)
	})

	for i := 0; i < 10; i++ {
		d.Run(100)
		if got := atomic.LoadInt32(&completions); got != int32(i+1) {
			t.Fatalf("after dispatch %d completions = %d, want %d", i, got, i+1)
		}
	}
}

func TestDispatcher_OnCompleteChainsNextDispatch(t *testing.T) {
	const n = 64
	stage := 0
	values := make([]int, n)

	var d *Dispatcher
	d = NewDispatcher(func(_, start, end int) {
		for i := start; i < end; i++ {
			if stage == 0 {
				values[i] = i
			} else {
				values[i] *= 2
			}
		}
	}, 4)
	defer d.Close()

	d.SetOnComplete(func() {
		if stage == 0 {
			stage = 1
			d.Dispatch(n)
		}
	})

	d.Dispatch(n)
	d.Wait()

	for i, v := range values {
		if v != i*2 {
			t.Fatalf("values[%d] = %d, want %d (chained stage did not run before Wait returned)", i, v, i*2)
		}
	}
}

func TestDispatcher_DispatchWhileRunningPanics(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)

	d := NewDispatcher(func(id, _, _ int) {
		if id == 0 {
			started <- struct{}{}
			<-release
		}
	}, 2)
	defer d.Close()

	d.Dispatch(2)
	<-started

	func() {
		defer func() {
			r := recover()
			if r != ErrAlreadyRunning {
				t.Errorf("recover() = %v, want ErrAlreadyRunning", r)
			}
		}()
		d.Dispatch(2)
	}()

	close(release)
	d.Wait()
}

func TestDispatcher_WaitWithoutDispatchIsNoop(t *testing.T) {
	d := NewDispatcher(func(_, _, _ int) {}, 2)
	defer d.Close()

	d.Wait()
	if d.Running() {
		t.Error("expected dispatcher to be idle")
	}
}

func TestDispatcher_ZeroItems(t *testing.T) {
	var calls int32
	var completions int32
	d := NewDispatcher(func(_, _, _ int) {
		atomic.AddInt32(&calls, 1)
	}, 4)
	defer d.Close()
	d.SetOnComplete(func() { atomic.AddInt32(&completions, 1) })

	d.Run(0)

	if calls != 0 {
		t.Errorf("action called %d times for empty dispatch, want 0", calls)
	}
	if completions != 1 {
		t.Errorf("completions = %d, want 1", completions)
	}
}

func TestDispatcher_CloseIsIdempotent(t *testing.T) {
	d := NewDispatcher(func(_, _, _ int) {}, 2)
	d.Run(10)
	d.Close()
	d.Close()
}

func BenchmarkDispatcher_Run(b *testing.B) {
	data := make([]float32, 4096)
	d := NewDispatcher(func(_, start, end int) {
		for i := start; i < end; i++ {
			data[i] = data[i]*0.99 + 1
		}
	}, 0)
	defer d.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		d.Run(len(data))
	}
}
