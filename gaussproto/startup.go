package gaussproto

import (
	"bytes"
	"fmt"

	"github.com/jackc/pgio"
)

// ProtocolVersionNumber is protocol version 3.0, the only version this
// driver speaks.
const ProtocolVersionNumber = 196608

// sslRequestCode and cancelRequestCode are sent in place of a protocol
// version number as the first int32 of a connection, before any regular
// StartupMessage. The server recognizes them by their distinctive magic
// value instead of a tag byte, since at that point no tag byte has been
// negotiated yet.
const (
	sslRequestCode    = 80877103
	cancelRequestCode = 80877102
)

// StartupMessage is the first message sent on a new connection once TLS
// negotiation (if any) is complete. It carries the run-time parameters from
// spec.md section 6 (user, database, application_name, client_encoding,
// search_path, TimeZone, options, ...).
type StartupMessage struct {
	ProtocolVersion uint32
	Parameters      map[string]string
}

func (src *StartupMessage) Encode(dst []byte) []byte {
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = pgio.AppendUint32(dst, src.ProtocolVersion)

	for k, v := range src.Parameters {
		dst = append(dst, k...)
		dst = append(dst, 0)
		dst = append(dst, v...)
		dst = append(dst, 0)
	}
	dst = append(dst, 0)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// SSLRequest asks the server whether it is willing to negotiate TLS. The
// server replies with a single byte, 'S' (will upgrade) or 'N' (will not),
// read directly off the socket before any further protocol messages.
type SSLRequest struct{}

func (SSLRequest) Encode(dst []byte) []byte {
	dst = pgio.AppendInt32(dst, 8)
	dst = pgio.AppendInt32(dst, sslRequestCode)
	return dst
}

// CancelRequest is sent on a brand-new, throwaway connection to ask the
// server to cancel the command currently running on the connection
// identified by (ProcessID, SecretKey). See spec.md section 4.3 "cancel()".
type CancelRequest struct {
	ProcessID uint32
	SecretKey uint32
}

func (src CancelRequest) Encode(dst []byte) []byte {
	dst = pgio.AppendInt32(dst, 16)
	dst = pgio.AppendInt32(dst, cancelRequestCode)
	dst = pgio.AppendUint32(dst, src.ProcessID)
	dst = pgio.AppendUint32(dst, src.SecretKey)
	return dst
}

// Terminate politely closes the session ('X' with no payload).
type Terminate struct{}

func (Terminate) Encode(dst []byte) []byte {
	dst = append(dst, tagTerminate)
	dst = pgio.AppendInt32(dst, 4)
	return dst
}

// readCString reads a single NUL-terminated string from src, returning the
// string and the remainder of src after the terminator.
func readCString(src []byte) (string, []byte, error) {
	idx := bytes.IndexByte(src, 0)
	if idx < 0 {
		return "", nil, fmt.Errorf("gaussproto: unterminated string")
	}
	return string(src[:idx]), src[idx+1:], nil
}
