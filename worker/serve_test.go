package worker_test

import (
	"errors"
	"io"
	"testing"
	"time"

	"go.uber.org/zap"

	"stylo/dom"
	"stylo/engine"
	"stylo/wire"
	"stylo/worker"
)

// startPair connects a proxy backend to a dispatch loop over in-memory
// pipes, standing in for the worker process stdio.
func startPair(t *testing.T) (engine.Backend, <-chan error) {
	t.Helper()

	reqR, reqW := io.Pipe()   // host requests -> worker
	respR, respW := io.Pipe() // worker responses -> host

	served := make(chan error, 1)
	go func() {
		served <- worker.Serve(wire.NewConn(reqR, respW), zap.NewNop())
	}()

	b, err := engine.NewWorkerBackend(zap.NewNop(), wire.NewConn(respR, reqW))
	if err != nil {
		t.Fatalf("NewWorkerBackend: %v", err)
	}
	return b, served
}

func buildDocument(t *testing.T, b engine.Backend) {
	t.Helper()
	if err := b.AddStylesheet(`div { color: red; } p { font-size: 12px; }`); err != nil {
		t.Fatalf("AddStylesheet: %v", err)
	}
	if _, err := b.CreateNode(1, ""); err != nil {
		t.Fatalf("CreateNode(1): %v", err)
	}
	if _, err := b.CreateNode(2, "text"); err != nil {
		t.Fatalf("CreateNode(2): %v", err)
	}
	if err := b.SetParent(dom.Root, 1); err != nil {
		t.Fatal(err)
	}
	if err := b.SetParent(1, 2); err != nil {
		t.Fatal(err)
	}
	if err := b.SetAttribute(1, "tag", "div"); err != nil {
		t.Fatal(err)
	}
	if err := b.SetAttribute(2, "tag", "p"); err != nil {
		t.Fatal(err)
	}
}

func TestServe_ResolveParity(t *testing.T) {
	proxied, served := startPair(t)
	local := engine.New()

	buildDocument(t, proxied)
	buildDocument(t, local)

	remote, err := proxied.Resolve(2)
	if err != nil {
		t.Fatalf("Resolve over the wire: %v", err)
	}
	direct, err := local.Resolve(2)
	if err != nil {
		t.Fatalf("Resolve in process: %v", err)
	}

	if remote.Dump() != direct.Dump() {
		t.Errorf("mode divergence:\n--- worker\n%s--- in-process\n%s", remote.Dump(), direct.Dump())
	}

	if err := proxied.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Serve returned %v, want nil after shutdown", err)
	}
}

func TestServe_RootID(t *testing.T) {
	proxied, served := startPair(t)

	id, err := proxied.RootID()
	if err != nil || id != dom.Root {
		t.Errorf("RootID = %d, %v", id, err)
	}

	if err := proxied.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
	<-served
}

func TestServe_ErrorParity(t *testing.T) {
	proxied, served := startPair(t)

	if _, err := proxied.CreateNode(1, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := proxied.CreateNode(1, ""); !errors.Is(err, dom.ErrDuplicateID) {
		t.Errorf("duplicate over the wire = %v, want ErrDuplicateID", err)
	}
	if _, err := proxied.CreateNode(0, ""); !errors.Is(err, dom.ErrInvalidID) {
		t.Errorf("reserved id over the wire = %v, want ErrInvalidID", err)
	}
	if err := proxied.SetParent(1, 1); !errors.Is(err, dom.ErrSelfParent) {
		t.Errorf("self parent over the wire = %v, want ErrSelfParent", err)
	}
	if _, err := proxied.Resolve(99); !errors.Is(err, dom.ErrUnknownNode) {
		t.Errorf("unknown node over the wire = %v, want ErrUnknownNode", err)
	}

	if err := proxied.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
	<-served
}

func TestServe_RunStop(t *testing.T) {
	proxied, served := startPair(t)

	if err := proxied.Stop(); !errors.Is(err, engine.ErrNotRunning) {
		t.Errorf("Stop before Run = %v", err)
	}

	runDone := make(chan error, 1)
	go func() { runDone <- proxied.Run() }()

	// Run over the wire blocks; stop and destroy still have to go through.
	deadline := time.Now().Add(5 * time.Second)
	for {
		if err := proxied.Stop(); err == nil {
			break
		} else if !errors.Is(err, engine.ErrNotRunning) {
			t.Fatalf("Stop: %v", err)
		}
		if time.Now().After(deadline) {
			t.Fatal("run loop never became stoppable")
		}
		time.Sleep(time.Millisecond)
	}

	if err := <-runDone; err != nil {
		t.Errorf("Run = %v, want nil on orderly stop", err)
	}

	if err := proxied.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
	if err := <-served; err != nil {
		t.Errorf("Serve = %v", err)
	}
}

func TestServe_DestroyWhileRunning(t *testing.T) {
	proxied, served := startPair(t)

	runDone := make(chan error, 1)
	go func() { runDone <- proxied.Run() }()
	// let the run request reach the dispatch loop
	time.Sleep(100 * time.Millisecond)

	// Destroy stops a running loop first and the blocked Run call
	// completes cleanly; when the destroy overtakes the run request the
	// run fails with ErrDestroyed instead. Both are orderly.
	if err := proxied.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := <-runDone; err != nil && !errors.Is(err, engine.ErrDestroyed) {
		t.Errorf("Run after destroy = %v", err)
	}
	<-served
}

func TestServe_SecondDestroy(t *testing.T) {
	proxied, served := startPair(t)

	if err := proxied.Destroy(); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if err := proxied.Destroy(); !errors.Is(err, engine.ErrDestroyed) {
		t.Errorf("second Destroy = %v, want ErrDestroyed", err)
	}
	<-served
}
