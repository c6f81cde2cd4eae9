package workers

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyWorker struct {
	runs    atomic.Int32
	crashes int32
}

func (w *flakyWorker) Run(_ context.Context) error {
	run := w.runs.Add(1)
	if run <= w.crashes {
		return fmt.Errorf("boom %d", run)
	}
	return nil
}

type panickyWorker struct {
	runs atomic.Int32
}

func (w *panickyWorker) Run(_ context.Context) error {
	if w.runs.Add(1) == 1 {
		panic("first run panics")
	}
	return nil
}

type blockingWorker struct{}

func (w blockingWorker) Run(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func Test_Supervisor_Restarts_Crashed_Worker(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Millisecond)
	worker := &flakyWorker{crashes: 2}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish")
	}
	req.Equal(int32(3), worker.runs.Load())
}

func Test_Supervisor_Recovers_From_Panic(t *testing.T) {
	req := require.New(t)
	sup := NewSupervisor(slog.Default(), time.Millisecond)
	worker := &panickyWorker{}
	sup.Add(worker)

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not finish")
	}
	req.Equal(int32(2), worker.runs.Load())
}

func Test_Supervisor_Stop_Cancels_Workers(t *testing.T) {
	sup := NewSupervisor(slog.Default(), time.Millisecond)
	sup.Add(blockingWorker{}, blockingWorker{})

	done := make(chan struct{})
	go func() {
		sup.Run(context.Background())
		close(done)
	}()

	// Give workers a moment to block on ctx.
	time.Sleep(50 * time.Millisecond)
	sup.Stop()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
