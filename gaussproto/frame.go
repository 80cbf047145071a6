package gaussproto

import (
	"encoding/binary"
	"fmt"
	"io"

	chunkreader "github.com/jackc/chunkreader/v2"
)

// Frame is the frame codec of spec.md section 4.1: it knows how to read
// length-prefixed, type-tagged messages off a byte stream and how to write
// them, but it does not interpret message semantics. Frame owns the
// connector's read and write buffers.
//
// Frame is deliberately the only place in this module that touches a
// net.Conn directly (through the io.Reader/io.Writer it was built with);
// everything above it works in terms of typed messages.
type Frame struct {
	cr *chunkreader.ChunkReader
	w  io.Writer

	wbuf []byte

	// Flyweight backend messages, reused across Receive calls; see
	// spec.md Design Notes section 9 "Deep object hierarchy of backend
	// messages" -- the tagged-variant dispatch keeps one instance of each
	// kind alive rather than allocating on every message.
	authentication        Authentication
	backendKeyData        BackendKeyData
	bindComplete          BindComplete
	closeComplete         CloseComplete
	commandComplete       CommandComplete
	copyBothResponse      CopyBothResponse
	copyData              CopyData
	copyDone              CopyDone
	copyInResponse        CopyInResponse
	copyOutResponse       CopyOutResponse
	dataRow               DataRow
	emptyQueryResponse    EmptyQueryResponse
	errorResponse         ErrorResponse
	noData                NoData
	noticeResponse        NoticeResponse
	notificationResponse  NotificationResponse
	parameterDescription  ParameterDescription
	parameterStatus       ParameterStatus
	parseComplete         ParseComplete
	portalSuspended       PortalSuspended
	readyForQuery         ReadyForQuery
	rowDescription        RowDescription

	bodyLen    int
	msgType    byte
	partialMsg bool

	// OnBytesWritten/OnBytesRead, when non-nil, are called with the byte
	// count of every Flush/SendUnbuffered write and every decoded message
	// (header + body) respectively. gaussconn wires these to a
	// gaussmetrics.Collector; nil leaves Frame with no metrics overhead.
	OnBytesWritten func(int)
	OnBytesRead    func(int)
}

// ReadBufferSize and WriteBufferSize defaults, see spec.md section 6.
const (
	DefaultReadBufferSize  = 8192
	DefaultWriteBufferSize = 8192
)

// NewFrame creates a Frame that reads from r and writes to w. bufSize <= 0
// selects DefaultReadBufferSize.
func NewFrame(r io.Reader, w io.Writer, bufSize int) *Frame {
	if bufSize <= 0 {
		bufSize = DefaultReadBufferSize
	}
	cr, err := chunkreader.NewConfig(r, chunkreader.Config{MinBufLen: bufSize})
	if err != nil {
		// Config{MinBufLen: bufSize} with bufSize > 0 cannot fail.
		panic(err)
	}
	return &Frame{cr: cr, w: w, wbuf: make([]byte, 0, DefaultWriteBufferSize)}
}

// Send appends msg's wire encoding to the pending write buffer. The message
// is not guaranteed to reach the peer until Flush is called.
func (f *Frame) Send(msg FrontendMessage) {
	f.wbuf = msg.Encode(f.wbuf)
}

// directWriteThreshold is the write-buffer size above which Flush bypasses
// the buffer and writes straight to the socket (spec.md section 4.1).
const directWriteThreshold = 64 * 1024

// Flush writes any pending messages to the peer.
func (f *Frame) Flush() error {
	if len(f.wbuf) == 0 {
		return nil
	}

	n, err := f.w.Write(f.wbuf)
	if f.OnBytesWritten != nil && n > 0 {
		f.OnBytesWritten(n)
	}

	if len(f.wbuf) > directWriteThreshold {
		f.wbuf = make([]byte, 0, DefaultWriteBufferSize)
	} else {
		f.wbuf = f.wbuf[:0]
	}

	return err
}

// SendUnbuffered flushes any pending buffered messages and then writes raw
// directly to the peer, bypassing the write buffer entirely. This is the
// direct-write path spec.md section 4.1 calls for with payloads larger than
// the write buffer (large CopyData chunks in particular).
func (f *Frame) SendUnbuffered(raw []byte) error {
	if err := f.Flush(); err != nil {
		return err
	}
	n, err := f.w.Write(raw)
	if f.OnBytesWritten != nil && n > 0 {
		f.OnBytesWritten(n)
	}
	return err
}

// Receive reads and decodes the next backend message. The returned message
// is a pointer into Frame's flyweight storage and is only valid until the
// next call to Receive.
func (f *Frame) Receive() (BackendMessage, error) {
	if !f.partialMsg {
		header, err := f.cr.Next(5)
		if err != nil {
			return nil, translateEOF(err)
		}

		f.msgType = header[0]
		msgLength := int(binary.BigEndian.Uint32(header[1:]))
		if msgLength < 4 {
			return nil, fmt.Errorf("gaussproto: invalid message length %d", msgLength)
		}
		f.bodyLen = msgLength - 4
		f.partialMsg = true
	}

	body, err := f.cr.Next(f.bodyLen)
	if err != nil {
		return nil, translateEOF(err)
	}
	f.partialMsg = false

	if f.OnBytesRead != nil {
		f.OnBytesRead(5 + f.bodyLen)
	}

	msg, err := f.dispatch(f.msgType)
	if err != nil {
		return nil, err
	}

	if err := msg.Decode(body); err != nil {
		return nil, fmt.Errorf("gaussproto: decode %c: %w", f.msgType, err)
	}

	return msg, nil
}

func (f *Frame) dispatch(tag byte) (BackendMessage, error) {
	switch tag {
	case TagParseComplete:
		return &f.parseComplete, nil
	case TagBindComplete:
		return &f.bindComplete, nil
	case TagCloseComplete:
		return &f.closeComplete, nil
	case TagNotificationResponse:
		return &f.notificationResponse, nil
	case TagCopyDone:
		return &f.copyDone, nil
	case TagCommandComplete:
		return &f.commandComplete, nil
	case TagCopyData:
		return &f.copyData, nil
	case TagDataRow:
		return &f.dataRow, nil
	case TagErrorResponse:
		return &f.errorResponse, nil
	case TagCopyInResponse:
		return &f.copyInResponse, nil
	case TagCopyOutResponse:
		return &f.copyOutResponse, nil
	case TagEmptyQueryResponse:
		return &f.emptyQueryResponse, nil
	case TagBackendKeyData:
		return &f.backendKeyData, nil
	case TagNoData:
		return &f.noData, nil
	case TagNoticeResponse:
		return &f.noticeResponse, nil
	case TagAuthentication:
		return &f.authentication, nil
	case TagPortalSuspended:
		return &f.portalSuspended, nil
	case TagParameterStatus:
		return &f.parameterStatus, nil
	case TagParameterDescription:
		return &f.parameterDescription, nil
	case TagRowDescription:
		return &f.rowDescription, nil
	case TagCopyBothResponse:
		return &f.copyBothResponse, nil
	case TagReadyForQuery:
		return &f.readyForQuery, nil
	default:
		return nil, fmt.Errorf("gaussproto: unknown backend message type %q", tag)
	}
}

// ReadSSLResponseByte reads the single-byte 'S'/'N' reply to an SSLRequest.
// It must be called before any Frame is wrapped around the (possibly now
// TLS) stream, since the byte is not part of the framed protocol.
func ReadSSLResponseByte(r io.Reader) (byte, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, translateEOF(err)
	}
	return b[0], nil
}

func translateEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}
