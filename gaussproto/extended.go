package gaussproto

import (
	"github.com/jackc/pgio"
)

// Query sends a simple-query ('Q') request. Used when there are no
// parameters and auto-prepare is disabled (spec.md section 4.3 execute()).
type Query struct {
	SQL string
}

func (src *Query) Encode(dst []byte) []byte {
	dst = append(dst, tagQuery)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.SQL...)
	dst = append(dst, 0)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// Parse names and parses a SQL statement for later Bind/Execute, optionally
// caching it server-side under StatementName (empty name means the unnamed
// statement).
type Parse struct {
	StatementName string
	Query         string
	ParameterOIDs []uint32
}

func (src *Parse) Encode(dst []byte) []byte {
	dst = append(dst, tagParse)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.StatementName...)
	dst = append(dst, 0)
	dst = append(dst, src.Query...)
	dst = append(dst, 0)

	dst = pgio.AppendUint16(dst, uint16(len(src.ParameterOIDs)))
	for _, oid := range src.ParameterOIDs {
		dst = pgio.AppendUint32(dst, oid)
	}

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// Bind binds a portal to a (possibly unnamed) prepared statement with
// concrete parameter values and requested result formats.
type Bind struct {
	DestinationPortal    string
	PreparedStatement    string
	ParameterFormatCodes []int16
	Parameters           [][]byte
	ResultFormatCodes    []int16
}

func (src *Bind) Encode(dst []byte) []byte {
	dst = append(dst, tagBind)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.DestinationPortal...)
	dst = append(dst, 0)
	dst = append(dst, src.PreparedStatement...)
	dst = append(dst, 0)

	dst = pgio.AppendUint16(dst, uint16(len(src.ParameterFormatCodes)))
	for _, fc := range src.ParameterFormatCodes {
		dst = pgio.AppendInt16(dst, fc)
	}

	dst = pgio.AppendUint16(dst, uint16(len(src.Parameters)))
	for _, p := range src.Parameters {
		if p == nil {
			dst = pgio.AppendInt32(dst, -1)
			continue
		}
		dst = pgio.AppendInt32(dst, int32(len(p)))
		dst = append(dst, p...)
	}

	dst = pgio.AppendUint16(dst, uint16(len(src.ResultFormatCodes)))
	for _, fc := range src.ResultFormatCodes {
		dst = pgio.AppendInt16(dst, fc)
	}

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// Describe asks the server for the parameter and row descriptors of a
// statement (TargetStatement) or portal (TargetPortal).
type Describe struct {
	ObjectType byte
	Name       string
}

func (src *Describe) Encode(dst []byte) []byte {
	dst = append(dst, tagDescribe)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.ObjectType)
	dst = append(dst, src.Name...)
	dst = append(dst, 0)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// Execute runs the named portal, returning at most MaxRows rows (0 means
// unlimited).
type Execute struct {
	Portal  string
	MaxRows uint32
}

func (src *Execute) Encode(dst []byte) []byte {
	dst = append(dst, tagExecute)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.Portal...)
	dst = append(dst, 0)
	dst = pgio.AppendUint32(dst, src.MaxRows)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// Close closes a prepared statement or portal by name.
type Close struct {
	ObjectType byte
	Name       string
}

func (src *Close) Encode(dst []byte) []byte {
	dst = append(dst, tagClose)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)

	dst = append(dst, src.ObjectType)
	dst = append(dst, src.Name...)
	dst = append(dst, 0)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}

// Sync closes out an extended-query batch. The server always answers a
// Sync-terminated batch with exactly one ReadyForQuery (spec.md section
// 4.3 "Ordering and tie-breaks").
type Sync struct{}

func (Sync) Encode(dst []byte) []byte {
	dst = append(dst, tagSync)
	dst = pgio.AppendInt32(dst, 4)
	return dst
}

// Flush asks the server to deliver any pending results without waiting for
// a Sync. The core does not use this in the common path; it exists for
// pipelining experiments and the multiplexing writer's batch boundary.
type Flush struct{}

func (Flush) Encode(dst []byte) []byte {
	dst = append(dst, tagFlush)
	dst = pgio.AppendInt32(dst, 4)
	return dst
}

// PasswordMessage carries either a cleartext password, an MD5-hashed
// response, or a SASL/SHA-256 response, depending on which authentication
// flow is in progress. The wire format is identical in all three cases: a
// single opaque byte string.
type PasswordMessage struct {
	Body []byte
}

func (src *PasswordMessage) Encode(dst []byte) []byte {
	dst = append(dst, tagPasswordMessage)
	sp := len(dst)
	dst = pgio.AppendInt32(dst, -1)
	dst = append(dst, src.Body...)

	pgio.SetInt32(dst[sp:], int32(len(dst[sp:])))
	return dst
}
