package main

import (
	"context"
	"testing"
	"time"

	"ventaclara/backend/internal/cache"
	"ventaclara/backend/internal/service"
	"ventaclara/backend/internal/store/memory"
)

func TestRunReconcileLoopStopsOnCancel(t *testing.T) {
	svc := service.New(memory.NewSeeded(), cache.NoopSummaryCache{}, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runReconcileLoop(ctx, svc, time.Millisecond)
		close(done)
	}()

	// Let at least one sweep fire before shutting the loop down.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("reconcile loop did not stop after cancel")
	}
}
