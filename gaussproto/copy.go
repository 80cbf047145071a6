package gaussproto

import (
	"encoding/binary"
	"fmt"

	"github.com/jackc/pgio"
)

// CopyData carries one chunk of COPY payload, in either direction.
type CopyData struct {
	Data []byte
}

func (src *CopyData) Encode(dst []byte) []byte {
	dst = append(dst, tagCopyData)
	dst = pgio.AppendInt32(dst, int32(4+len(src.Data)))
	dst = append(dst, src.Data...)
	return dst
}

func (dst *CopyData) Decode(src []byte) error {
	dst.Data = append(dst.Data[:0], src...)
	return nil
}

// CopyDone signals the end of a COPY IN or COPY OUT stream.
type CopyDone struct{}

func (CopyDone) Encode(dst []byte) []byte {
	dst = append(dst, tagCopyDone)
	dst = pgio.AppendInt32(dst, 4)
	return dst
}

func (*CopyDone) Decode(src []byte) error {
	if len(src) != 0 {
		return fmt.Errorf("gaussproto: invalid CopyDone length %d", len(src))
	}
	return nil
}

// CopyFail aborts a COPY IN stream with a client-supplied reason.
type CopyFail struct {
	Message string
}

func (src *CopyFail) Encode(dst []byte) []byte {
	dst = append(dst, tagCopyFail)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)
	dst = append(dst, src.Message...)
	dst = append(dst, 0)
	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

func decodeCopyFormat(src []byte) (overallFormat int8, columnFormats []int16, err error) {
	if len(src) < 3 {
		return 0, nil, fmt.Errorf("gaussproto: copy response too short")
	}
	overallFormat = int8(src[0])
	n := int(binary.BigEndian.Uint16(src[1:3]))
	rp := 3
	columnFormats = make([]int16, n)
	for i := 0; i < n; i++ {
		if len(src) < rp+2 {
			return 0, nil, fmt.Errorf("gaussproto: copy response truncated")
		}
		columnFormats[i] = int16(binary.BigEndian.Uint16(src[rp:]))
		rp += 2
	}
	return overallFormat, columnFormats, nil
}

// CopyInResponse is sent by the server to begin a client-to-server COPY.
type CopyInResponse struct {
	OverallFormat     int8
	ColumnFormatCodes []int16
}

func (dst *CopyInResponse) Decode(src []byte) (err error) {
	dst.OverallFormat, dst.ColumnFormatCodes, err = decodeCopyFormat(src)
	return err
}

// CopyOutResponse is sent by the server to begin a server-to-client COPY.
type CopyOutResponse struct {
	OverallFormat     int8
	ColumnFormatCodes []int16
}

func (dst *CopyOutResponse) Decode(src []byte) (err error) {
	dst.OverallFormat, dst.ColumnFormatCodes, err = decodeCopyFormat(src)
	return err
}

// CopyBothResponse begins a bidirectional COPY, used by logical and
// physical replication (spec.md section 4.3 "Ready -> Replication").
type CopyBothResponse struct {
	OverallFormat     int8
	ColumnFormatCodes []int16
}

func (dst *CopyBothResponse) Decode(src []byte) (err error) {
	dst.OverallFormat, dst.ColumnFormatCodes, err = decodeCopyFormat(src)
	return err
}
