package engine

import (
	"errors"
	"testing"

	"stylo/dom"
)

func TestRemapError(t *testing.T) {
	for _, sentinel := range wireSentinels {
		if got := remapError(sentinel.Error()); got != sentinel {
			t.Errorf("remapError(%q) = %v, want identity", sentinel.Error(), got)
		}
	}

	got := remapError("worker: something else")
	if got == nil || errors.Is(got, dom.ErrUnknownNode) {
		t.Errorf("unknown text must map to a plain error, got %v", got)
	}
	if got.Error() != "worker: something else" {
		t.Errorf("text must be preserved, got %q", got.Error())
	}
}

func TestRegistry_DeadHandlePollingKeepsNoState(t *testing.T) {
	reg := NewRegistry(nil)
	h := reg.Init(true)
	if got := reg.Destroy(h); got != 0 {
		t.Fatalf("Destroy = %d", got)
	}

	// Polling a destroyed handle reports the error without accumulating
	// per-handle state the destroy already released.
	for i := 0; i < 10; i++ {
		if got := reg.CreateNode(h, 1, ""); got != 0 {
			t.Fatalf("CreateNode on dead handle = %d", got)
		}
		if err := reg.LastError(h); !errors.Is(err, ErrInvalidHandle) {
			t.Fatalf("LastError = %v, want ErrInvalidHandle", err)
		}
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if len(reg.lastErr) != 0 {
		t.Errorf("lastErr retained %d entries for dead handles", len(reg.lastErr))
	}
	if len(reg.backends) != 0 {
		t.Errorf("backends retained %d entries", len(reg.backends))
	}
}

func TestResolveWorkerPath_Env(t *testing.T) {
	t.Setenv(WorkerPathEnv, "/opt/bin/custom-worker")
	path, err := resolveWorkerPath()
	if err != nil {
		t.Fatalf("resolveWorkerPath: %v", err)
	}
	if path != "/opt/bin/custom-worker" {
		t.Errorf("path = %q", path)
	}
}
