// Package wire defines the messages exchanged with a worker process and
// the framing that carries them. Every message travels as a 4-byte
// big-endian length prefix followed by an Amazon Ion binary payload.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/amazon-ion/ion-go/ion"
)

// Operation names. The set mirrors the engine boundary contract plus the
// session handshake and the worker shutdown.
const (
	OpHello         = "hello"
	OpInit          = "init"
	OpAddStylesheet = "add-stylesheet"
	OpCreateNode    = "create-node"
	OpSetParent     = "set-parent"
	OpSetAttribute  = "set-attribute"
	OpRootID        = "root-id"
	OpResolve       = "resolve"
	OpRun           = "run"
	OpStop          = "stop"
	OpDestroy       = "destroy"
	OpShutdown      = "shutdown"
)

// Request is a host-to-worker call. Only the fields relevant to Op are
// populated.
type Request struct {
	Seq     uint64 `ion:"seq"`
	Op      string `ion:"op"`
	Session string `ion:"session,omitempty"` // hello only
	Node    uint64 `ion:"node,omitempty"`
	Parent  uint64 `ion:"parent,omitempty"`
	Child   uint64 `ion:"child,omitempty"`
	Key     string `ion:"key,omitempty"`
	Value   string `ion:"value,omitempty"`
	Text    string `ion:"text,omitempty"`
	CSS     string `ion:"css,omitempty"`
}

// Prop is one flattened resolved-style entry of a resolve response.
type Prop struct {
	Name      string  `ion:"name"`
	Raw       string  `ion:"raw"`
	Value     float64 `ion:"value,omitempty"`
	Unit      string  `ion:"unit,omitempty"`
	Keyword   string  `ion:"keyword,omitempty"`
	Origin    int     `ion:"origin"`
	Inherited bool    `ion:"inherited,omitempty"`
}

// Response answers the request with the same Seq. Err carries the failure
// text; an empty Err means success.
type Response struct {
	Seq   uint64 `ion:"seq"`
	Op    string `ion:"op"`
	Err   string `ion:"err,omitempty"`
	ID    uint64 `ion:"id,omitempty"`   // create-node, root-id
	Code  int    `ion:"code,omitempty"` // run, destroy
	Props []Prop `ion:"props,omitempty"`
}

// maxFrame bounds a single message. Stylesheets are the largest payloads;
// 64 MiB is far beyond any sane document.
const maxFrame = 64 << 20

// Conn frames messages over a byte stream. Writes are serialized so that
// asynchronous completions (the worker's run reply) can interleave safely
// with inline replies.
type Conn struct {
	wmu sync.Mutex
	w   io.Writer
	rmu sync.Mutex
	r   io.Reader
}

// NewConn wraps a reader/writer pair, typically a process' stdio pipes.
func NewConn(r io.Reader, w io.Writer) *Conn {
	return &Conn{r: r, w: w}
}

func (c *Conn) send(v any) error {
	payload, err := ion.MarshalBinary(v)
	if err != nil {
		return fmt.Errorf("wire: marshal: %w", err)
	}
	if len(payload) > maxFrame {
		return fmt.Errorf("wire: frame too large: %d bytes", len(payload))
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}
	if _, err := c.w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}
	return nil
}

func (c *Conn) recv(v any) error {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	var hdr [4]byte
	if _, err := io.ReadFull(c.r, hdr[:]); err != nil {
		return fmt.Errorf("wire: read frame header: %w", err)
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if size > maxFrame {
		return fmt.Errorf("wire: oversized frame: %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(c.r, payload); err != nil {
		return fmt.Errorf("wire: read frame payload: %w", err)
	}
	if err := ion.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: unmarshal: %w", err)
	}
	return nil
}

// WriteRequest sends one request frame.
func (c *Conn) WriteRequest(req *Request) error {
	return c.send(req)
}

// ReadRequest receives one request frame.
func (c *Conn) ReadRequest() (*Request, error) {
	var req Request
	if err := c.recv(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// WriteResponse sends one response frame.
func (c *Conn) WriteResponse(resp *Response) error {
	return c.send(resp)
}

// ReadResponse receives one response frame.
func (c *Conn) ReadResponse() (*Response, error) {
	var resp Response
	if err := c.recv(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
