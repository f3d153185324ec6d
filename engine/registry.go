package engine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"stylo/dom"
	"stylo/style"
)

// Handle is an opaque reference to a living instance. 0 is never a valid
// handle. Handles come from a monotonic counter and are never reused, so a
// destroyed handle can never resolve again.
type Handle uint64

// Spawner connects a worker-delegated backend. The default spawner starts
// the worker binary and speaks the wire protocol over its stdio; tests
// substitute an in-memory transport.
type Spawner func(log *zap.Logger) (Backend, error)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithWorkerCommand overrides how the worker binary is located.
func WithWorkerCommand(path string, args ...string) RegistryOption {
	return func(r *Registry) {
		r.workerPath = path
		r.workerArgs = args
	}
}

// WithSpawner replaces worker process spawning entirely. Test seam.
func WithSpawner(spawn Spawner) RegistryOption {
	return func(r *Registry) {
		r.spawn = spawn
	}
}

// WithRegistrySink forwards a sink to every in-process instance the
// registry creates.
func WithRegistrySink(sink Sink) RegistryOption {
	return func(r *Registry) {
		r.sink = sink
	}
}

// Registry owns every instance created through it and is the only path to
// one. It is an explicit object rather than process-wide state so tests
// can create and destroy many isolated instances.
//
// The narrow sentinel-convention methods (CreateNode returning 0, Run
// returning -1) mirror the boundary contract; LastError exposes the
// diagnostic detail those sentinels flatten away.
type Registry struct {
	log        *zap.Logger
	mu         sync.Mutex
	backends   map[Handle]Backend
	lastErr    map[Handle]error
	next       atomic.Uint64
	sink       Sink
	spawn      Spawner
	workerPath string
	workerArgs []string
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger, opts ...RegistryOption) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Registry{
		log:      log.Named("registry"),
		backends: make(map[Handle]Backend),
		lastErr:  make(map[Handle]error),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.spawn == nil {
		r.spawn = func(log *zap.Logger) (Backend, error) {
			return spawnWorker(log, r.workerPath, r.workerArgs)
		}
	}
	return r
}

// Init creates an instance and returns its handle, 0 on failure. With
// useSameProcess the instance lives in this process; otherwise a worker
// process is established and every subsequent call for the handle is
// proxied to it.
func (r *Registry) Init(useSameProcess bool) Handle {
	var (
		b   Backend
		err error
	)
	if useSameProcess {
		b = New(WithLogger(r.log), WithSink(r.sink))
	} else {
		if b, err = r.spawn(r.log); err != nil {
			r.log.Error("Unable to establish worker", zap.Error(err))
			return 0
		}
	}

	h := Handle(r.next.Add(1))
	r.mu.Lock()
	r.backends[h] = b
	r.mu.Unlock()

	r.log.Debug("Instance created", zap.Uint64("handle", uint64(h)), zap.Bool("sameProcess", useSameProcess))
	return h
}

func (r *Registry) backend(h Handle) (Backend, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.backends[h]
	return b, ok
}

// record keeps the error for a live handle only; nothing is stored for an
// unknown or destroyed one, so polling a dead handle cannot regrow state
// Destroy already released.
func (r *Registry) record(h Handle, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.backends[h]; !live {
		return
	}
	if err != nil {
		r.lastErr[h] = err
	} else {
		delete(r.lastErr, h)
	}
}

// LastError returns the diagnostic detail of the handle's most recent
// failed operation, nil when the last operation succeeded. Unknown and
// destroyed handles always report ErrInvalidHandle.
func (r *Registry) LastError(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, live := r.backends[h]; !live {
		return ErrInvalidHandle
	}
	return r.lastErr[h]
}

// AddStylesheet parses and appends a stylesheet to the instance.
func (r *Registry) AddStylesheet(h Handle, cssText string) error {
	b, ok := r.backend(h)
	if !ok {
		return ErrInvalidHandle
	}
	err := b.AddStylesheet(cssText)
	r.record(h, err)
	return err
}

// CreateNode creates a node and returns its id, 0 on failure (duplicate or
// reserved id, invalid handle).
func (r *Registry) CreateNode(h Handle, id dom.NodeID, text string) dom.NodeID {
	b, ok := r.backend(h)
	if !ok {
		return 0
	}
	nid, err := b.CreateNode(id, text)
	r.record(h, err)
	if err != nil {
		return 0
	}
	return nid
}

// SetParent reparents child under parent; a no-op with a recorded error on
// unknown ids or cycle attempts.
func (r *Registry) SetParent(h Handle, parent, child dom.NodeID) error {
	b, ok := r.backend(h)
	if !ok {
		return ErrInvalidHandle
	}
	err := b.SetParent(parent, child)
	r.record(h, err)
	return err
}

// SetAttribute sets an attribute on a node of the instance.
func (r *Registry) SetAttribute(h Handle, id dom.NodeID, key, value string) error {
	b, ok := r.backend(h)
	if !ok {
		return ErrInvalidHandle
	}
	err := b.SetAttribute(id, key, value)
	r.record(h, err)
	return err
}

// RootID returns the reserved root id. It returns 0 both for a valid root
// and for an invalid handle; the two are distinguished through LastError.
func (r *Registry) RootID(h Handle) dom.NodeID {
	b, ok := r.backend(h)
	if !ok {
		return 0
	}
	id, err := b.RootID()
	r.record(h, err)
	if err != nil {
		return 0
	}
	return id
}

// Resolve computes a node's effective style.
func (r *Registry) Resolve(h Handle, id dom.NodeID) (*style.Resolved, error) {
	b, ok := r.backend(h)
	if !ok {
		return nil, ErrInvalidHandle
	}
	resolved, err := b.Resolve(id)
	r.record(h, err)
	return resolved, err
}

// Run blocks driving the instance's loop; 0 on orderly stop, -1 on error.
func (r *Registry) Run(h Handle) int {
	b, ok := r.backend(h)
	if !ok {
		return -1
	}
	err := b.Run()
	r.record(h, err)
	if err != nil {
		return -1
	}
	return 0
}

// Stop requests an orderly stop of the instance's run loop.
func (r *Registry) Stop(h Handle) error {
	b, ok := r.backend(h)
	if !ok {
		return ErrInvalidHandle
	}
	err := b.Stop()
	r.record(h, err)
	return err
}

// Destroy releases the instance and permanently invalidates the handle;
// 0 on success, -1 on error. The handle never resolves again either way.
func (r *Registry) Destroy(h Handle) int {
	r.mu.Lock()
	b, ok := r.backends[h]
	delete(r.backends, h)
	delete(r.lastErr, h)
	r.mu.Unlock()

	if !ok {
		return -1
	}
	if err := b.Destroy(); err != nil {
		r.log.Warn("Destroy completed with error", zap.Uint64("handle", uint64(h)), zap.Error(err))
		return -1
	}
	r.log.Debug("Instance destroyed", zap.Uint64("handle", uint64(h)))
	return 0
}

// Close destroys every remaining instance. Used on program shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	handles := make([]Handle, 0, len(r.backends))
	for h := range r.backends {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	for _, h := range handles {
		r.Destroy(h)
	}
}
