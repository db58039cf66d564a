package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

// pageResult stands in for one fetched policy page
type pageResult struct {
	url string
	err error
}

func (r *pageResult) GetError() error { return r.err }

// pageJob simulates a page fetch taking latency; a 404 path fails
type pageJob struct {
	url     string
	latency time.Duration
	fetched *atomic.Int32
	inUse   *atomic.Int32
	peak    *atomic.Int32
}

var errNotFound = errors.New("404 not found")

func (j *pageJob) Execute(ctx context.Context) Result {
	if j.fetched != nil {
		j.fetched.Add(1)
	}
	if j.inUse != nil {
		n := j.inUse.Add(1)
		defer j.inUse.Add(-1)
		for {
			old := j.peak.Load()
			if n <= old || j.peak.CompareAndSwap(old, n) {
				break
			}
		}
	}
	if j.latency > 0 {
		select {
		case <-time.After(j.latency):
		case <-ctx.Done():
			return &pageResult{url: j.url, err: ctx.Err()}
		}
	}
	if j.url == "/missing" {
		return &pageResult{url: j.url, err: errNotFound}
	}
	return &pageResult{url: j.url}
}

func TestNewPool_WorkerFloor(t *testing.T) {
	for in, want := range map[int]int{5: 5, 0: 1, -3: 1} {
		if got := NewPool(context.Background(), in).workers; got != want {
			t.Errorf("NewPool(%d).workers = %d, want %d", in, got, want)
		}
	}
}

func TestPool_FetchesEveryPage(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()

	var fetched atomic.Int32
	paths := []string{"/about", "/open-access", "/license", "/missing", "/fees"}
	for _, path := range paths {
		pool.Submit(&pageJob{url: path, fetched: &fetched})
	}

	results := pool.Wait()
	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	if got := fetched.Load(); got != int32(len(paths)) {
		t.Errorf("expected %d fetches, got %d", len(paths), got)
	}

	failed := 0
	for _, res := range results {
		if errors.Is(res.GetError(), errNotFound) {
			failed++
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed page, got %d", failed)
	}
}

func TestPool_BoundsConcurrentFetches(t *testing.T) {
	const workers = 4
	pool := NewPool(context.Background(), workers)
	pool.Start()

	var inUse, peak atomic.Int32
	for i := 0; i < 40; i++ {
		pool.Submit(&pageJob{
			url:     fmt.Sprintf("/issue/%d", i),
			latency: 5 * time.Millisecond,
			inUse:   &inUse,
			peak:    &peak,
		})
	}
	pool.Wait()

	if got := peak.Load(); got > workers {
		t.Errorf("peak concurrency %d exceeded %d workers", got, workers)
	}
}

func TestPool_QueueLargerThanBuffer(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	for i := 0; i < 100; i++ {
		pool.Submit(&pageJob{url: fmt.Sprintf("/article/%d", i)})
	}
	if got := len(pool.Wait()); got != 100 {
		t.Errorf("expected 100 results, got %d", got)
	}
}

func TestPool_CancelledRunStillReportsEveryPage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pool := NewPool(ctx, 3)
	pool.Start()
	for i := 0; i < 6; i++ {
		pool.Submit(&pageJob{url: fmt.Sprintf("/slow/%d", i), latency: time.Second})
	}

	results := pool.Wait()
	if len(results) != 6 {
		t.Fatalf("expected 6 results, got %d", len(results))
	}
	for _, res := range results {
		if !errors.Is(res.GetError(), context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", res.GetError())
		}
	}
}

func TestPool_ShutdownUnblocks(t *testing.T) {
	pool := NewPool(context.Background(), 2)
	pool.Start()
	pool.Submit(&pageJob{url: "/slow", latency: 200 * time.Millisecond})

	done := make(chan struct{})
	go func() {
		pool.Shutdown()
		pool.Submit(&pageJob{url: "/late"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Shutdown or a late Submit blocked")
	}
}

func TestRun_ResultsFollowSubmissionOrder(t *testing.T) {
	jobs := make([]Job, 20)
	for i := range jobs {
		jobs[i] = &pageJob{
			url:     fmt.Sprintf("/issue/%d", i),
			latency: time.Duration(20-i) * time.Millisecond,
		}
	}

	results := Run(context.Background(), 5, jobs)
	if len(results) != len(jobs) {
		t.Fatalf("expected %d results, got %d", len(jobs), len(results))
	}
	for i, res := range results {
		want := fmt.Sprintf("/issue/%d", i)
		if got := res.(*pageResult).url; got != want {
			t.Errorf("result %d is %s, want %s", i, got, want)
		}
	}

	if empty := Run(context.Background(), 5, nil); len(empty) != 0 {
		t.Errorf("expected no results, got %d", len(empty))
	}
}
