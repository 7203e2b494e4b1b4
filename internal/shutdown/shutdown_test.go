package shutdown

import (
	"os"
	"testing"
	"time"
)

// A server that fails to start triggers Shutdown from its own goroutine
// while main is parked in WaitForSignal. WaitForSignal must return in that
// case without any OS signal arriving, or the process hangs.
func TestWaitForSignalReturnsAfterShutdown(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	coordinator := NewCoordinator(
		WithTimeout(time.Second),
		WithSignalChannel(sigCh),
	)
	coordinator.Register(NewMockComponent("store", 5*time.Millisecond, false))

	coordinator.Shutdown()
	coordinator.Wait()

	done := make(chan struct{})
	go func() {
		coordinator.WaitForSignal()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal did not return after shutdown completed")
	}
	if coordinator.ExitCode() != 0 {
		t.Fatalf("exit code = %d, want 0", coordinator.ExitCode())
	}
}

func TestWaitForSignalUnblocksOnConcurrentShutdown(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	coordinator := NewCoordinator(
		WithTimeout(time.Second),
		WithSignalChannel(sigCh),
	)
	comp := NewMockComponent("http-server", 5*time.Millisecond, false)
	coordinator.Register(comp)

	done := make(chan struct{})
	go func() {
		coordinator.WaitForSignal()
		coordinator.Wait()
		close(done)
	}()

	// Let WaitForSignal park on the select first.
	time.Sleep(10 * time.Millisecond)
	go coordinator.Shutdown()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitForSignal stayed blocked while shutdown ran elsewhere")
	}
	if comp.ShutdownCount() != 1 {
		t.Fatalf("shutdown count = %d, want 1", comp.ShutdownCount())
	}
}
