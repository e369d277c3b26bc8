package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeLocker struct {
	mu      sync.Mutex
	holders map[string]string
	err     error
}

func (f *fakeLocker) TryLock(_ context.Context, key, owner string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if f.holders == nil {
		f.holders = map[string]string{}
	}
	if _, held := f.holders[key]; held {
		return false, nil
	}
	f.holders[key] = owner
	return true, nil
}

func TestTickRunsOnlyForLeaseHolder(t *testing.T) {
	locker := &fakeLocker{}
	var runs, skips int
	job := Job{
		Name:     "test",
		Interval: time.Minute,
		LockKey:  "lock",
		Run:      func(context.Context) error { runs++; return nil },
		OnSkip:   func() { skips++ },
	}

	first := NewPeriodic(job, locker, "a", nil)
	second := NewPeriodic(job, locker, "b", nil)

	if !first.Tick(context.Background()) {
		t.Fatalf("expected first replica to run")
	}
	if second.Tick(context.Background()) {
		t.Fatalf("expected second replica to skip")
	}
	if runs != 1 || skips != 1 {
		t.Fatalf("runs=%d skips=%d", runs, skips)
	}
}

func TestTickRunsWhenLeaseStoreFails(t *testing.T) {
	locker := &fakeLocker{err: errors.New("connection refused")}
	var runs int
	p := NewPeriodic(Job{
		Name:     "test",
		Interval: time.Minute,
		LockKey:  "lock",
		Run:      func(context.Context) error { runs++; return nil },
	}, locker, "a", nil)

	if !p.Tick(context.Background()) || runs != 1 {
		t.Fatalf("expected run despite lease error, runs=%d", runs)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ran := make(chan struct{}, 8)
	p := NewPeriodic(Job{
		Name:     "test",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	}, nil, "", nil)

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatalf("job never ran")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("worker did not stop")
	}
}
