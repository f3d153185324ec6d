package wire_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	"stylo/wire"
)

func TestConn_RequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	conn := wire.NewConn(&buf, &buf)

	sent := &wire.Request{
		Seq:   7,
		Op:    wire.OpSetAttribute,
		Node:  12,
		Key:   "class",
		Value: "note warning",
	}
	if err := conn.WriteRequest(sent); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	got, err := conn.ReadRequest()
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got.Seq != sent.Seq || got.Op != sent.Op || got.Node != sent.Node ||
		got.Key != sent.Key || got.Value != sent.Value {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestConn_ResponseRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	conn := wire.NewConn(&buf, &buf)

	sent := &wire.Response{
		Seq: 3,
		Op:  wire.OpResolve,
		Props: []wire.Prop{
			{Name: "color", Raw: "red", Keyword: "red", Origin: 2},
			{Name: "font-size", Raw: "12px", Value: 12, Unit: "px", Origin: -1, Inherited: true},
		},
	}
	if err := conn.WriteResponse(sent); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	got, err := conn.ReadResponse()
	if err != nil {
		t.Fatalf("ReadResponse: %v", err)
	}
	if got.Seq != sent.Seq || got.Op != sent.Op || len(got.Props) != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Props[0].Name != "color" || got.Props[0].Keyword != "red" || got.Props[0].Origin != 2 {
		t.Errorf("prop 0 mismatch: %+v", got.Props[0])
	}
	if got.Props[1].Value != 12 || got.Props[1].Unit != "px" || !got.Props[1].Inherited {
		t.Errorf("prop 1 mismatch: %+v", got.Props[1])
	}
}

func TestConn_MultipleFrames(t *testing.T) {
	var buf bytes.Buffer
	conn := wire.NewConn(&buf, &buf)

	for seq := uint64(1); seq <= 3; seq++ {
		if err := conn.WriteRequest(&wire.Request{Seq: seq, Op: wire.OpRun}); err != nil {
			t.Fatal(err)
		}
	}
	for seq := uint64(1); seq <= 3; seq++ {
		got, err := conn.ReadRequest()
		if err != nil {
			t.Fatalf("frame %d: %v", seq, err)
		}
		if got.Seq != seq {
			t.Errorf("frame order: got seq %d, want %d", got.Seq, seq)
		}
	}
}

func TestConn_OversizedFrameRejected(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 1<<30)
	buf.Write(hdr[:])

	conn := wire.NewConn(&buf, &buf)
	if _, err := conn.ReadRequest(); err == nil {
		t.Fatal("expected oversized frame to be rejected")
	}
}

func TestConn_TruncatedFrame(t *testing.T) {
	var buf bytes.Buffer
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], 100)
	buf.Write(hdr[:])
	buf.WriteString("short")

	conn := wire.NewConn(&buf, &buf)
	if _, err := conn.ReadRequest(); err == nil {
		t.Fatal("expected truncated frame to fail")
	}
}
