// Package engine ties the document tree, the stylesheet store and the
// cascade resolver into addressable instances. The Registry hands out
// opaque numeric handles and serves each one either against an in-process
// Engine or a proxy to a worker process; both satisfy the same Backend
// operation set with identical observable semantics.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"stylo/css"
	"stylo/dom"
	"stylo/style"
)

// State is the run state of one instance.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
	StateDestroyed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	case StateDestroyed:
		return "destroyed"
	}
	return "unknown"
}

// Sink receives recomputed styles from the run loop. It is the seam where
// a rendering collaborator attaches. The sink is invoked from the loop
// goroutine with the instance lock held and must not call back into the
// engine.
type Sink func(id dom.NodeID, resolved *style.Resolved)

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the instance logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithSink sets the collaborator the run loop yields resolved styles to.
func WithSink(sink Sink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// Engine is one in-process styling instance: a document tree, an
// append-only stylesheet store and a memoizing resolver, plus the run loop
// that recomputes styles after mutations.
//
// Mutating calls are serialized by an internal lock so that the worker
// dispatch loop can run the loop and apply mutations concurrently; within
// one process the caller is still expected to be a single writer.
type Engine struct {
	log      *zap.Logger
	sink     Sink
	mu       sync.Mutex
	tree     *dom.Tree
	sheet    *css.Store
	resolver *style.Resolver

	state    atomic.Int32
	pending  []dom.NodeID // dirty subtree roots awaiting the run loop
	allDirty bool

	wake     chan struct{}
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// New creates an idle instance with an empty document and no stylesheets.
func New(opts ...Option) *Engine {
	e := &Engine{
		log:    zap.NewNop(),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Named("engine")
	e.tree = dom.NewTree(e.log)
	e.sheet = css.NewStore(e.log)
	e.resolver = style.NewResolver(e.tree, e.sheet, e.log)
	return e
}

// StateOf returns the current run state.
func (e *Engine) StateOf() State {
	return State(e.state.Load())
}

func (e *Engine) destroyed() bool {
	return e.StateOf() == StateDestroyed
}

// markDirty queues a subtree for the run loop and pokes it awake.
// Caller holds e.mu.
func (e *Engine) markDirty(id dom.NodeID) {
	e.pending = append(e.pending, id)
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *Engine) markAllDirty() {
	e.allDirty = true
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// AddStylesheet parses and appends a stylesheet. Tolerantly parsed
// problems become store warnings; an unrecoverable parse failure is
// returned as *css.ParseError and leaves the store unchanged.
func (e *Engine) AddStylesheet(cssText string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed() {
		return ErrDestroyed
	}
	if err := e.sheet.Add(cssText); err != nil {
		return err
	}
	// Any node may be affected by new rules.
	e.resolver.InvalidateAll()
	e.markAllDirty()
	return nil
}

// CreateNode adds a detached node with the caller-chosen non-zero id.
func (e *Engine) CreateNode(id dom.NodeID, text string) (dom.NodeID, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed() {
		return 0, ErrDestroyed
	}
	nid, err := e.tree.CreateNode(id, text)
	if err != nil {
		return 0, err
	}
	e.resolver.Invalidate(nid)
	e.markDirty(nid)
	return nid, nil
}

// SetParent reparents child under parent; see dom.Tree.SetParent for the
// rejection cases. On success the child's subtree is invalidated.
func (e *Engine) SetParent(parent, child dom.NodeID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed() {
		return ErrDestroyed
	}
	if err := e.tree.SetParent(parent, child); err != nil {
		return err
	}
	e.resolver.Invalidate(child)
	e.markDirty(child)
	return nil
}

// SetAttribute sets an attribute on the node; descendant styles may depend
// on it, so the node's whole subtree is invalidated.
func (e *Engine) SetAttribute(id dom.NodeID, key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed() {
		return ErrDestroyed
	}
	if err := e.tree.SetAttribute(id, key, value); err != nil {
		return err
	}
	e.resolver.Invalidate(id)
	e.markDirty(id)
	return nil
}

// RootID returns the reserved root id.
func (e *Engine) RootID() (dom.NodeID, error) {
	if e.destroyed() {
		return 0, ErrDestroyed
	}
	return dom.Root, nil
}

// Resolve computes the node's effective style against the current tree and
// stylesheet state.
func (e *Engine) Resolve(id dom.NodeID) (*style.Resolved, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed() {
		return nil, ErrDestroyed
	}
	return e.resolver.Resolve(id)
}

// Warnings returns the stylesheet store's tolerant-parsing warnings.
func (e *Engine) Warnings() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed() {
		return nil
	}
	return e.sheet.Warnings()
}

// Run drives the instance: it blocks, draining dirty notifications and
// recomputing the affected styles for the sink, until Stop is observed
// (orderly, returns nil) or a fatal internal error occurs (returns the
// error and the instance is destroyed). Run is not reentrant; a second
// call while running fails with ErrAlreadyRunning, and instances do not
// restart after stopping.
func (e *Engine) Run() error {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		switch e.StateOf() {
		case StateRunning:
			return ErrAlreadyRunning
		case StateStopped:
			return ErrStopped
		default:
			return ErrDestroyed
		}
	}
	defer close(e.done)
	e.log.Debug("Run loop started")

	for {
		select {
		case <-e.stopCh:
			e.state.Store(int32(StateStopped))
			e.log.Debug("Run loop stopped")
			return nil
		case <-e.wake:
			if err := e.processPending(); err != nil {
				e.state.Store(int32(StateDestroyed))
				e.log.Error("Run loop failed", zap.Error(err))
				return fmt.Errorf("%w: %v", ErrFatal, err)
			}
		}
	}
}

// processPending recomputes styles for everything dirtied since the last
// iteration and yields the results to the sink.
func (e *Engine) processPending() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var targets []dom.NodeID
	if e.allDirty {
		targets = e.tree.IDs()
	} else {
		seen := make(map[dom.NodeID]bool)
		for _, root := range e.pending {
			for _, id := range e.tree.Subtree(root) {
				if !seen[id] {
					seen[id] = true
					targets = append(targets, id)
				}
			}
		}
	}
	e.pending = e.pending[:0]
	e.allDirty = false

	for _, id := range targets {
		resolved, err := e.resolver.Resolve(id)
		if err != nil {
			return fmt.Errorf("resolving node %d: %w", id, err)
		}
		if e.sink != nil {
			e.sink(id, resolved)
		}
	}
	return nil
}

// Stop requests an orderly stop; the loop observes it at the next
// iteration boundary. Stopping an instance that is not running fails with
// ErrNotRunning.
func (e *Engine) Stop() error {
	if e.StateOf() != StateRunning {
		return ErrNotRunning
	}
	e.stopOnce.Do(func() { close(e.stopCh) })
	return nil
}

// Destroy releases the instance. A running loop is stopped first and
// waited for, so no queued mutation is torn down mid-flight. Destroying
// twice fails with ErrDestroyed.
func (e *Engine) Destroy() error {
	switch e.StateOf() {
	case StateDestroyed:
		return ErrDestroyed
	case StateRunning:
		e.stopOnce.Do(func() { close(e.stopCh) })
		<-e.done
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Store(int32(StateDestroyed))
	e.tree = nil
	e.sheet = nil
	e.resolver = nil
	e.pending = nil
	e.log.Debug("Instance destroyed")
	return nil
}
