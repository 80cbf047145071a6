package gaussproto

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"
)

// rawMessage appends one length-prefixed, type-tagged backend message to
// buf: tag byte, then a big-endian int32 length (including itself), then
// body.
func rawMessage(buf *bytes.Buffer, tag byte, body []byte) {
	buf.WriteByte(tag)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)+4))
	buf.Write(lenBuf[:])
	buf.Write(body)
}

func TestFrameReceiveDecodesReadyForQuery(t *testing.T) {
	var wire bytes.Buffer
	rawMessage(&wire, TagReadyForQuery, []byte{'I'})

	f := NewFrame(&wire, io.Discard, 0)
	msg, err := f.Receive()
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	rfq, ok := msg.(*ReadyForQuery)
	if !ok {
		t.Fatalf("expected *ReadyForQuery, got %T", msg)
	}
	if rfq.TxStatus != 'I' {
		t.Fatalf("expected TxStatus 'I', got %q", rfq.TxStatus)
	}
}

func TestFrameReceiveDecodesMultipleMessagesInOrder(t *testing.T) {
	var wire bytes.Buffer
	rawMessage(&wire, TagCommandComplete, append([]byte("SELECT 1"), 0))
	rawMessage(&wire, TagReadyForQuery, []byte{'T'})

	f := NewFrame(&wire, io.Discard, 0)

	msg1, err := f.Receive()
	if err != nil {
		t.Fatalf("Receive 1: %v", err)
	}
	cc, ok := msg1.(*CommandComplete)
	if !ok || string(cc.CommandTag) != "SELECT 1" {
		t.Fatalf("expected CommandComplete(SELECT 1), got %T %+v", msg1, msg1)
	}

	msg2, err := f.Receive()
	if err != nil {
		t.Fatalf("Receive 2: %v", err)
	}
	rfq, ok := msg2.(*ReadyForQuery)
	if !ok || rfq.TxStatus != 'T' {
		t.Fatalf("expected ReadyForQuery(T), got %T %+v", msg2, msg2)
	}
}

func TestFrameReceiveRejectsUnknownMessageType(t *testing.T) {
	var wire bytes.Buffer
	rawMessage(&wire, '?', []byte{1, 2, 3})

	f := NewFrame(&wire, io.Discard, 0)
	if _, err := f.Receive(); err == nil {
		t.Fatalf("expected an error for an unrecognized message tag")
	}
}

func TestFrameReceiveRejectsUndersizedLength(t *testing.T) {
	var wire bytes.Buffer
	wire.WriteByte(TagReadyForQuery)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], 3) // below the minimum of 4 (length field itself)
	wire.Write(lenBuf[:])

	f := NewFrame(&wire, io.Discard, 0)
	if _, err := f.Receive(); err == nil {
		t.Fatalf("expected an error for a message length smaller than the length field itself")
	}
}

func TestFrameSendFlushWritesToWriter(t *testing.T) {
	var out bytes.Buffer
	f := NewFrame(bytes.NewBufferString(""), &out, 0)

	f.Send(&Query{SQL: "SELECT 1"})
	if out.Len() != 0 {
		t.Fatalf("Send should buffer, not write immediately")
	}
	if err := f.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if out.Len() == 0 {
		t.Fatalf("expected Flush to write the buffered message")
	}
	if out.Bytes()[0] != tagQuery {
		t.Fatalf("expected first byte to be the Query tag %q, got %q", tagQuery, out.Bytes()[0])
	}
}
