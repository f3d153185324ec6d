package engine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"stylo/css"
	"stylo/dom"
	"stylo/style"
	"stylo/wire"
)

// WorkerPathEnv overrides where the worker binary is looked for.
const WorkerPathEnv = "STYLO_WORKER_PATH"

const workerReapTimeout = 5 * time.Second

// workerProxy serves the Backend operation set by marshaling every call to
// a worker process and blocking until its response. Responses are
// demultiplexed by sequence number, so a blocking run call does not stall
// stop or destroy.
type workerProxy struct {
	log     *zap.Logger
	conn    *wire.Conn
	cmd     *exec.Cmd // nil when connected over an injected transport
	session string

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan *wire.Response
	dead    error // transport failure, set once
	closed  chan struct{}

	destroyed atomic.Bool
}

// spawnWorker starts the worker binary and performs the handshake. The
// binary is located through WorkerPathEnv, an explicit path, or next to
// the host executable, in that order.
func spawnWorker(log *zap.Logger, path string, args []string) (*workerProxy, error) {
	if path == "" {
		var err error
		if path, err = resolveWorkerPath(); err != nil {
			return nil, err
		}
	}

	cmd := exec.Command(path, args...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: starting worker %q: %v", ErrCommunication, path, err)
	}

	log.Debug("Worker started", zap.String("path", path), zap.Int("pid", cmd.Process.Pid))

	p, err := newProxy(log, wire.NewConn(stdout, stdin), cmd)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}
	return p, nil
}

// NewWorkerBackend connects a worker-delegated backend over an established
// transport, for callers that manage the worker lifecycle themselves. The
// default spawner wires process stdio through the same path.
func NewWorkerBackend(log *zap.Logger, conn *wire.Conn) (Backend, error) {
	return newProxy(log, conn, nil)
}

// newProxy wires a proxy over an established transport and performs the
// hello/init handshake.
func newProxy(log *zap.Logger, conn *wire.Conn, cmd *exec.Cmd) (*workerProxy, error) {
	if log == nil {
		log = zap.NewNop()
	}
	p := &workerProxy{
		log:     log.Named("worker-proxy"),
		conn:    conn,
		cmd:     cmd,
		session: uuid.NewString(),
		pending: make(map[uint64]chan *wire.Response),
		closed:  make(chan struct{}),
	}
	go p.readLoop()

	if _, err := p.call(&wire.Request{Op: wire.OpHello, Session: p.session}); err != nil {
		return nil, err
	}
	if _, err := p.call(&wire.Request{Op: wire.OpInit}); err != nil {
		return nil, err
	}
	return p, nil
}

func resolveWorkerPath() (string, error) {
	if path := os.Getenv(WorkerPathEnv); path != "" {
		return path, nil
	}

	name := "stylo-worker"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err == nil {
		candidate := filepath.Join(filepath.Dir(exe), name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	// No PATH lookup on purpose; the worker must be deployed alongside.
	return "", fmt.Errorf("%w: worker binary not found (set %s)", ErrCommunication, WorkerPathEnv)
}

// readLoop demultiplexes worker responses to their waiting calls.
func (p *workerProxy) readLoop() {
	for {
		resp, err := p.conn.ReadResponse()
		if err != nil {
			p.mu.Lock()
			p.dead = fmt.Errorf("%w: %v", ErrCommunication, err)
			for seq, ch := range p.pending {
				close(ch)
				delete(p.pending, seq)
			}
			p.mu.Unlock()
			close(p.closed)
			if !p.destroyed.Load() {
				p.log.Warn("Worker transport lost", zap.Error(err))
			}
			return
		}

		p.mu.Lock()
		ch, ok := p.pending[resp.Seq]
		if ok {
			delete(p.pending, resp.Seq)
		}
		p.mu.Unlock()
		if ok {
			ch <- resp
		} else {
			p.log.Warn("Orphan worker response", zap.Uint64("seq", resp.Seq), zap.String("op", resp.Op))
		}
	}
}

// call sends one request and blocks until its response or a transport
// failure.
func (p *workerProxy) call(req *wire.Request) (*wire.Response, error) {
	req.Seq = p.seq.Add(1)

	ch := make(chan *wire.Response, 1)
	p.mu.Lock()
	if p.dead != nil {
		err := p.dead
		p.mu.Unlock()
		return nil, err
	}
	p.pending[req.Seq] = ch
	p.mu.Unlock()

	if err := p.conn.WriteRequest(req); err != nil {
		p.mu.Lock()
		delete(p.pending, req.Seq)
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: %v", ErrCommunication, err)
	}

	resp, ok := <-ch
	if !ok {
		p.mu.Lock()
		err := p.dead
		p.mu.Unlock()
		if err == nil {
			err = ErrCommunication
		}
		return nil, err
	}
	if resp.Err != "" {
		return resp, remapError(resp.Err)
	}
	return resp, nil
}

// sentinels the worker may report; their text survives the wire, so it is
// mapped back for errors.Is parity with in-process mode.
var wireSentinels = []error{
	dom.ErrInvalidID,
	dom.ErrDuplicateID,
	dom.ErrUnknownNode,
	dom.ErrSelfParent,
	dom.ErrCycle,
	dom.ErrReparentRoot,
	ErrAlreadyRunning,
	ErrNotRunning,
	ErrStopped,
	ErrDestroyed,
}

func remapError(msg string) error {
	for _, sentinel := range wireSentinels {
		if msg == sentinel.Error() {
			return sentinel
		}
	}
	return errors.New(msg)
}

func (p *workerProxy) AddStylesheet(cssText string) error {
	_, err := p.call(&wire.Request{Op: wire.OpAddStylesheet, CSS: cssText})
	return err
}

func (p *workerProxy) CreateNode(id dom.NodeID, text string) (dom.NodeID, error) {
	resp, err := p.call(&wire.Request{Op: wire.OpCreateNode, Node: uint64(id), Text: text})
	if err != nil {
		return 0, err
	}
	return dom.NodeID(resp.ID), nil
}

func (p *workerProxy) SetParent(parent, child dom.NodeID) error {
	_, err := p.call(&wire.Request{Op: wire.OpSetParent, Parent: uint64(parent), Child: uint64(child)})
	return err
}

func (p *workerProxy) SetAttribute(id dom.NodeID, key, value string) error {
	_, err := p.call(&wire.Request{Op: wire.OpSetAttribute, Node: uint64(id), Key: key, Value: value})
	return err
}

func (p *workerProxy) RootID() (dom.NodeID, error) {
	resp, err := p.call(&wire.Request{Op: wire.OpRootID})
	if err != nil {
		return 0, err
	}
	return dom.NodeID(resp.ID), nil
}

func (p *workerProxy) Resolve(id dom.NodeID) (*style.Resolved, error) {
	resp, err := p.call(&wire.Request{Op: wire.OpResolve, Node: uint64(id)})
	if err != nil {
		return nil, err
	}
	resolved := &style.Resolved{Props: make(map[string]style.PropertyValue, len(resp.Props))}
	for _, prop := range resp.Props {
		resolved.Props[prop.Name] = style.PropertyValue{
			Value:     propValue(prop),
			Origin:    prop.Origin,
			Inherited: prop.Inherited,
		}
	}
	return resolved, nil
}

func propValue(p wire.Prop) css.Value {
	return css.Value{Raw: p.Raw, Value: p.Value, Unit: p.Unit, Keyword: p.Keyword}
}

func (p *workerProxy) Run() error {
	resp, err := p.call(&wire.Request{Op: wire.OpRun})
	if err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("%w: worker run exited with %d", ErrFatal, resp.Code)
	}
	return nil
}

func (p *workerProxy) Stop() error {
	_, err := p.call(&wire.Request{Op: wire.OpStop})
	return err
}

// Destroy tears the worker down: instance destroy, orderly shutdown, then
// process reaping. Teardown errors are aggregated; the process is always
// reaped.
func (p *workerProxy) Destroy() (err error) {
	if !p.destroyed.CompareAndSwap(false, true) {
		return ErrDestroyed
	}

	if _, er := p.call(&wire.Request{Op: wire.OpDestroy}); er != nil && !errors.Is(er, ErrDestroyed) {
		err = multierr.Append(err, er)
	}
	if er := p.conn.WriteRequest(&wire.Request{Seq: p.seq.Add(1), Op: wire.OpShutdown}); er != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %v", ErrCommunication, er))
	}

	if p.cmd != nil {
		waited := make(chan error, 1)
		go func() { waited <- p.cmd.Wait() }()
		select {
		case er := <-waited:
			if er != nil {
				err = multierr.Append(err, fmt.Errorf("%w: worker exit: %v", ErrCommunication, er))
			}
		case <-time.After(workerReapTimeout):
			err = multierr.Append(err, fmt.Errorf("%w: worker did not exit, killing", ErrCommunication))
			_ = p.cmd.Process.Kill()
			<-waited
		}
	}
	return err
}
