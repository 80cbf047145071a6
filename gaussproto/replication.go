package gaussproto

import (
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgio"
)

// XLogData carries one chunk of WAL during physical or logical replication.
// It arrives wrapped inside a CopyData message; the 'w' sub-tag and fixed
// header are consumed here rather than in the CopyData decoder, matching
// the teacher's layering of "outer" Copy framing from "inner" replication
// framing.
type XLogData struct {
	WALStart     uint64
	WALEnd       uint64
	ServerTime   int64
	WALData      []byte
}

func (dst *XLogData) Decode(src []byte) error {
	if len(src) < 1+8+8+8 {
		return fmt.Errorf("gaussproto: XLogData: too short")
	}
	if src[0] != TagXLogData {
		return fmt.Errorf("gaussproto: XLogData: unexpected sub-tag %q", src[0])
	}
	dst.WALStart = binary.BigEndian.Uint64(src[1:])
	dst.WALEnd = binary.BigEndian.Uint64(src[9:])
	dst.ServerTime = int64(binary.BigEndian.Uint64(src[17:]))
	dst.WALData = append(dst.WALData[:0], src[25:]...)
	return nil
}

// PrimaryKeepaliveMessage is the server's replication-stream heartbeat,
// also wrapped inside CopyData.
type PrimaryKeepaliveMessage struct {
	ServerWALEnd   uint64
	ServerTime     int64
	ReplyRequested bool
}

func (dst *PrimaryKeepaliveMessage) Decode(src []byte) error {
	if len(src) != 1+8+8+1 {
		return fmt.Errorf("gaussproto: PrimaryKeepaliveMessage: wrong length")
	}
	if src[0] != TagPrimaryKeepalive {
		return fmt.Errorf("gaussproto: PrimaryKeepaliveMessage: unexpected sub-tag %q", src[0])
	}
	dst.ServerWALEnd = binary.BigEndian.Uint64(src[1:])
	dst.ServerTime = int64(binary.BigEndian.Uint64(src[9:]))
	dst.ReplyRequested = src[17] != 0
	return nil
}

// StandbyStatusUpdate is the client's half of the replication keepalive
// sub-protocol (spec.md section 4.3 "Ready -> Replication"), sent as the
// CopyData payload with sub-tag 'r'.
type StandbyStatusUpdate struct {
	WALWritePosition uint64
	WALFlushPosition uint64
	WALApplyPosition uint64
	ServerTime       int64
	ReplyRequested   bool
}

func (src *StandbyStatusUpdate) Encode(dst []byte) []byte {
	dst = append(dst, 'r')
	dst = pgio.AppendUint64(dst, src.WALWritePosition)
	dst = pgio.AppendUint64(dst, src.WALFlushPosition)
	dst = pgio.AppendUint64(dst, src.WALApplyPosition)
	dst = pgio.AppendInt64(dst, src.ServerTime)
	if src.ReplyRequested {
		dst = append(dst, 1)
	} else {
		dst = append(dst, 0)
	}
	return dst
}
