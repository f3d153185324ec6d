// Package worker implements the process-side half of the worker-delegated
// engine mode. A worker hosts exactly one engine and answers requests
// read from its stdio transport until told to shut down.
package worker

import (
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"

	"stylo/dom"
	"stylo/engine"
	"stylo/style"
	"stylo/wire"
)

// Server answers requests for a single engine instance.
type Server struct {
	log     *zap.Logger
	conn    *wire.Conn
	eng     *engine.Engine
	session string

	// run replies are written from their own goroutine; the connection
	// serializes writes, the group keeps Serve from returning under them.
	running sync.WaitGroup
}

// Serve runs the dispatch loop until shutdown or transport failure. On a
// clean shutdown any live engine is destroyed and nil is returned.
func Serve(conn *wire.Conn, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{log: log.Named("worker"), conn: conn}
	return s.loop()
}

func (s *Server) loop() error {
	defer s.running.Wait()
	defer func() {
		if s.eng != nil {
			_ = s.eng.Destroy()
		}
	}()

	for {
		req, err := s.conn.ReadRequest()
		if err != nil {
			return err
		}
		if req.Op == wire.OpShutdown {
			s.log.Debug("Shutdown requested")
			return nil
		}
		s.dispatch(req)
	}
}

func (s *Server) dispatch(req *wire.Request) {
	switch req.Op {
	case wire.OpHello:
		s.session = req.Session
		s.log.Debug("Session opened", zap.String("session", s.session))
		s.reply(req, nil, nil)

	case wire.OpInit:
		if s.eng != nil {
			s.reply(req, errors.New("worker: engine already initialized"), nil)
			return
		}
		s.eng = engine.New(engine.WithLogger(s.log))
		s.reply(req, nil, nil)

	case wire.OpRun:
		// Run blocks until stop or destroy; answer from its own
		// goroutine so stop and destroy requests stay serviceable.
		if s.eng == nil {
			s.reply(req, errNotInitialized, nil)
			return
		}
		s.running.Add(1)
		go func(req *wire.Request) {
			defer s.running.Done()
			s.reply(req, s.eng.Run(), nil)
		}(req)

	default:
		err, fill := s.apply(req)
		s.reply(req, err, fill)
	}
}

var errNotInitialized = errors.New("worker: engine not initialized")

// apply executes one synchronous engine operation.
func (s *Server) apply(req *wire.Request) (error, func(*wire.Response)) {
	if s.eng == nil {
		return errNotInitialized, nil
	}

	switch req.Op {
	case wire.OpAddStylesheet:
		return s.eng.AddStylesheet(req.CSS), nil

	case wire.OpCreateNode:
		id, err := s.eng.CreateNode(dom.NodeID(req.Node), req.Text)
		return err, func(resp *wire.Response) { resp.ID = uint64(id) }

	case wire.OpSetParent:
		return s.eng.SetParent(dom.NodeID(req.Parent), dom.NodeID(req.Child)), nil

	case wire.OpSetAttribute:
		return s.eng.SetAttribute(dom.NodeID(req.Node), req.Key, req.Value), nil

	case wire.OpRootID:
		id, err := s.eng.RootID()
		return err, func(resp *wire.Response) { resp.ID = uint64(id) }

	case wire.OpResolve:
		resolved, err := s.eng.Resolve(dom.NodeID(req.Node))
		if err != nil {
			return err, nil
		}
		props := flattenProps(resolved)
		return nil, func(resp *wire.Response) { resp.Props = props }

	case wire.OpStop:
		return s.eng.Stop(), nil

	case wire.OpDestroy:
		return s.eng.Destroy(), nil
	}
	return errors.New("worker: unknown operation " + req.Op), nil
}

func (s *Server) reply(req *wire.Request, err error, fill func(*wire.Response)) {
	resp := &wire.Response{Seq: req.Seq, Op: req.Op}
	if err != nil {
		resp.Err = err.Error()
	} else if fill != nil {
		fill(resp)
	}
	if werr := s.conn.WriteResponse(resp); werr != nil {
		s.log.Error("Reply failed", zap.String("op", req.Op), zap.Error(werr))
	}
}

// flattenProps serializes a resolved style in stable name order.
func flattenProps(resolved *style.Resolved) []wire.Prop {
	props := make([]wire.Prop, 0, len(resolved.Props))
	for name, pv := range resolved.Props {
		props = append(props, wire.Prop{
			Name:      name,
			Raw:       pv.Value.Raw,
			Value:     pv.Value.Value,
			Unit:      pv.Value.Unit,
			Keyword:   pv.Value.Keyword,
			Origin:    pv.Origin,
			Inherited: pv.Inherited,
		})
	}
	sort.Slice(props, func(i, j int) bool { return props[i].Name < props[j].Name })
	return props
}
