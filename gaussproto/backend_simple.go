package gaussproto

import (
	"encoding/binary"
	"fmt"
)

// ParseComplete, BindComplete, CloseComplete, NoData, EmptyQueryResponse and
// PortalSuspended are all fixed-length, content-free acknowledgements.

type ParseComplete struct{}

func (*ParseComplete) Decode(src []byte) error { return expectEmpty("ParseComplete", src) }

type BindComplete struct{}

func (*BindComplete) Decode(src []byte) error { return expectEmpty("BindComplete", src) }

type CloseComplete struct{}

func (*CloseComplete) Decode(src []byte) error { return expectEmpty("CloseComplete", src) }

type NoData struct{}

func (*NoData) Decode(src []byte) error { return expectEmpty("NoData", src) }

type EmptyQueryResponse struct{}

func (*EmptyQueryResponse) Decode(src []byte) error { return expectEmpty("EmptyQueryResponse", src) }

type PortalSuspended struct{}

func (*PortalSuspended) Decode(src []byte) error { return expectEmpty("PortalSuspended", src) }

func expectEmpty(msgType string, src []byte) error {
	if len(src) != 0 {
		return fmt.Errorf("gaussproto: %s: expected 0 body bytes, got %d", msgType, len(src))
	}
	return nil
}

// BackendKeyData carries the (PID, secret) pair used for out-of-band
// cancellation (spec.md section 3 Invariants).
type BackendKeyData struct {
	ProcessID uint32
	SecretKey uint32
}

func (dst *BackendKeyData) Decode(src []byte) error {
	if len(src) != 8 {
		return fmt.Errorf("gaussproto: BackendKeyData: expected 8 body bytes, got %d", len(src))
	}
	dst.ProcessID = binary.BigEndian.Uint32(src[:4])
	dst.SecretKey = binary.BigEndian.Uint32(src[4:])
	return nil
}

// ParameterStatus reports a server run-time parameter. The connector folds
// these into its session-parameter map (spec.md section 4.2).
type ParameterStatus struct {
	Name  string
	Value string
}

func (dst *ParameterStatus) Decode(src []byte) error {
	name, rest, err := readCString(src)
	if err != nil {
		return fmt.Errorf("gaussproto: ParameterStatus: %w", err)
	}
	value, rest, err := readCString(rest)
	if err != nil {
		return fmt.Errorf("gaussproto: ParameterStatus: %w", err)
	}
	if len(rest) != 0 {
		return fmt.Errorf("gaussproto: ParameterStatus: trailing bytes")
	}
	dst.Name, dst.Value = name, value
	return nil
}

// ParameterDescription lists the inferred parameter type OIDs of a parsed
// statement.
type ParameterDescription struct {
	ParameterOIDs []uint32
}

func (dst *ParameterDescription) Decode(src []byte) error {
	if len(src) < 2 {
		return fmt.Errorf("gaussproto: ParameterDescription: too short")
	}
	n := int(binary.BigEndian.Uint16(src))
	rp := 2
	oids := make([]uint32, n)
	for i := 0; i < n; i++ {
		if len(src) < rp+4 {
			return fmt.Errorf("gaussproto: ParameterDescription: truncated")
		}
		oids[i] = binary.BigEndian.Uint32(src[rp:])
		rp += 4
	}
	dst.ParameterOIDs = oids
	return nil
}

// ReadyForQuery delimits the end of a command or extended-query batch. The
// TxStatus byte ('I' idle, 'T' in transaction, 'E' failed transaction) is
// the one authoritative source of transaction state (spec.md section 6).
type ReadyForQuery struct {
	TxStatus byte
}

func (dst *ReadyForQuery) Decode(src []byte) error {
	if len(src) != 1 {
		return fmt.Errorf("gaussproto: ReadyForQuery: expected 1 body byte, got %d", len(src))
	}
	dst.TxStatus = src[0]
	return nil
}

// CommandComplete reports the tag of a just-finished command, e.g.
// "SELECT 1" or "INSERT 0 3".
type CommandComplete struct {
	CommandTag []byte
}

func (dst *CommandComplete) Decode(src []byte) error {
	if len(src) == 0 || src[len(src)-1] != 0 {
		return fmt.Errorf("gaussproto: CommandComplete: missing NUL terminator")
	}
	dst.CommandTag = append(dst.CommandTag[:0], src[:len(src)-1]...)
	return nil
}

// RowDescription lists one FieldDescription per result column.
type FieldDescription struct {
	Name                 []byte
	TableOID             uint32
	TableAttributeNumber uint16
	DataTypeOID          uint32
	DataTypeSize         int16
	TypeModifier         int32
	Format               int16
}

type RowDescription struct {
	Fields []FieldDescription
}

func (dst *RowDescription) Decode(src []byte) error {
	if len(src) < 2 {
		return fmt.Errorf("gaussproto: RowDescription: too short")
	}
	fieldCount := int(binary.BigEndian.Uint16(src))
	rp := 2

	if cap(dst.Fields) >= fieldCount {
		dst.Fields = dst.Fields[:fieldCount]
	} else {
		dst.Fields = make([]FieldDescription, fieldCount)
	}

	for i := 0; i < fieldCount; i++ {
		name, rest, err := readCString(src[rp:])
		if err != nil {
			return fmt.Errorf("gaussproto: RowDescription: %w", err)
		}
		rp = len(src) - len(rest)

		if len(src) < rp+18 {
			return fmt.Errorf("gaussproto: RowDescription: truncated field")
		}

		dst.Fields[i] = FieldDescription{
			Name:                 []byte(name),
			TableOID:             binary.BigEndian.Uint32(src[rp:]),
			TableAttributeNumber: binary.BigEndian.Uint16(src[rp+4:]),
			DataTypeOID:          binary.BigEndian.Uint32(src[rp+6:]),
			DataTypeSize:         int16(binary.BigEndian.Uint16(src[rp+10:])),
			TypeModifier:         int32(binary.BigEndian.Uint32(src[rp+12:])),
			Format:               int16(binary.BigEndian.Uint16(src[rp+16:])),
		}
		rp += 18
	}

	return nil
}

// DataRow carries one result row as a slice of raw column values. A nil
// entry represents SQL NULL.
type DataRow struct {
	Values [][]byte
}

func (dst *DataRow) Decode(src []byte) error {
	if len(src) < 2 {
		return fmt.Errorf("gaussproto: DataRow: too short")
	}
	columnCount := int(binary.BigEndian.Uint16(src))
	rp := 2

	if cap(dst.Values) >= columnCount {
		dst.Values = dst.Values[:columnCount]
	} else {
		dst.Values = make([][]byte, columnCount)
	}

	for i := 0; i < columnCount; i++ {
		if len(src) < rp+4 {
			return fmt.Errorf("gaussproto: DataRow: truncated column length")
		}
		size := int32(binary.BigEndian.Uint32(src[rp:]))
		rp += 4
		if size == -1 {
			dst.Values[i] = nil
			continue
		}
		if size < 0 || len(src) < rp+int(size) {
			return fmt.Errorf("gaussproto: DataRow: truncated column value")
		}
		dst.Values[i] = src[rp : rp+int(size)]
		rp += int(size)
	}

	return nil
}

// NotificationResponse delivers an asynchronous LISTEN/NOTIFY payload.
type NotificationResponse struct {
	PID     uint32
	Channel string
	Payload string
}

func (dst *NotificationResponse) Decode(src []byte) error {
	if len(src) < 4 {
		return fmt.Errorf("gaussproto: NotificationResponse: too short")
	}
	dst.PID = binary.BigEndian.Uint32(src)
	channel, rest, err := readCString(src[4:])
	if err != nil {
		return fmt.Errorf("gaussproto: NotificationResponse: %w", err)
	}
	payload, _, err := readCString(rest)
	if err != nil {
		return fmt.Errorf("gaussproto: NotificationResponse: %w", err)
	}
	dst.Channel, dst.Payload = channel, payload
	return nil
}
