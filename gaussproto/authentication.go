package gaussproto

import (
	"encoding/binary"
	"fmt"
)

// Authentication sub-message type codes, carried as the first int32 inside
// an 'R'-tagged Authentication message (spec.md section 4.2).
const (
	AuthTypeOk                = 0
	AuthTypeCleartextPassword = 3
	AuthTypeMD5Password       = 5
	AuthTypeGSS               = 7
	AuthTypeGSSContinue       = 8
	AuthTypeSASL              = 10 // openGauss overloads this code for its SHA-256 challenge.
	AuthTypeSASLContinue      = 11
	AuthTypeSASLFinal         = 12
)

// openGauss nested password-type codes, sent as the first token of the
// SASL-shaped challenge body (spec.md section 4.3 "openGauss SHA-256 flow").
const (
	PasswordTypeMD5        = "md5"
	PasswordTypeSHA256     = "sha256"
	PasswordTypeMD5SHA256  = "md5_sha256"
	PasswordTypePlain      = "plain"
)

// AuthenticationMD5Password carries the 4-byte salt combined into the MD5
// challenge response (spec.md scenario 3).
type AuthenticationMD5Password struct {
	Salt [4]byte
}

// AuthenticationGaussSHA256 is openGauss's single-round SASL-shaped
// challenge: a hex-encoded salt, an 8-character token, and a PBKDF2
// iteration count, instead of the generic SCRAM mechanism-negotiation
// handshake. The spec treats this as "SASL with single server challenge"
// (spec.md section 4.3).
type AuthenticationGaussSHA256 struct {
	Salt          string
	Token         string
	ServerIters   int32
	PasswordStore string // one of the PasswordType* constants, if present
}

// AuthenticationGSSContinue and AuthenticationGSS carry opaque
// Kerberos/SSPI tokens; the core never inspects their contents (spec.md
// section 4.3 "GSS/SSPI").
type AuthenticationGSS struct {
	Data []byte
}

type AuthenticationGSSContinue struct {
	Data []byte
}

// AuthenticationSASLFinal carries the server's final SCRAM-shaped
// verification payload.
type AuthenticationSASLFinal struct {
	Data []byte
}

// Authentication is the decoded form of any 'R'-tagged backend message. Type
// selects which of the payload fields is meaningful, mirroring the union
// shape spec.md section 9 calls for ("model as a tagged variant").
type Authentication struct {
	Type uint32

	MD5Salt [4]byte

	GaussSHA256 AuthenticationGaussSHA256

	GSSData []byte // AuthTypeGSS / AuthTypeGSSContinue

	SASLFinalData []byte // AuthTypeSASLFinal
}

func (dst *Authentication) Decode(src []byte) error {
	if len(src) < 4 {
		return fmt.Errorf("gaussproto: Authentication: too short")
	}
	dst.Type = binary.BigEndian.Uint32(src)
	body := src[4:]

	switch dst.Type {
	case AuthTypeOk, AuthTypeCleartextPassword:
		// no further payload
	case AuthTypeMD5Password:
		if len(body) < 4 {
			return fmt.Errorf("gaussproto: AuthenticationMD5Password: missing salt")
		}
		copy(dst.MD5Salt[:], body[:4])
	case AuthTypeGSS:
		dst.GSSData = append(dst.GSSData[:0], body...)
	case AuthTypeGSSContinue:
		dst.GSSData = append(dst.GSSData[:0], body...)
	case AuthTypeSASL:
		gs, err := decodeGaussSHA256Challenge(body)
		if err != nil {
			return fmt.Errorf("gaussproto: AuthenticationSASL (openGauss SHA-256): %w", err)
		}
		dst.GaussSHA256 = gs
	case AuthTypeSASLContinue:
		gs, err := decodeGaussSHA256Challenge(body)
		if err != nil {
			return fmt.Errorf("gaussproto: AuthenticationSASLContinue: %w", err)
		}
		dst.GaussSHA256 = gs
	case AuthTypeSASLFinal:
		dst.SASLFinalData = append(dst.SASLFinalData[:0], body...)
	default:
		return fmt.Errorf("gaussproto: unknown authentication type %d", dst.Type)
	}

	return nil
}

// decodeGaussSHA256Challenge parses the openGauss server-first-message
// shape: a NUL-separated sequence of "key=value" tokens carrying at least
// "salt", "token", and "iteration" (spec.md section 4.3). Real servers emit
// these concatenated without separators in some versions; both forms are
// accepted by scanning for the three well-known prefixes.
func decodeGaussSHA256Challenge(body []byte) (AuthenticationGaussSHA256, error) {
	var gs AuthenticationGaussSHA256
	s := string(body)

	salt, rest := cutKV(s, "salt=")
	gs.Salt = salt
	token, rest := cutKV(rest, "token=")
	gs.Token = token
	iterStr, rest := cutKV(rest, "iteration=")
	if iterStr != "" {
		for _, c := range iterStr {
			if c < '0' || c > '9' {
				break
			}
			gs.ServerIters = gs.ServerIters*10 + int32(c-'0')
		}
	}
	if store, _ := cutKV(rest, "password_store="); store != "" {
		gs.PasswordStore = store
	}

	if gs.Salt == "" || gs.Token == "" {
		return gs, fmt.Errorf("missing salt or token in server challenge")
	}
	return gs, nil
}

// cutKV finds "key=" in s and returns the value up to the next comma (or end
// of string) plus whatever remains of s for further scanning.
func cutKV(s, key string) (value string, rest string) {
	idx := indexOf(s, key)
	if idx < 0 {
		return "", s
	}
	v := s[idx+len(key):]
	end := indexByte(v, ',')
	if end < 0 {
		return v, ""
	}
	return v[:end], v[end+1:]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}

func indexByte(s string, b byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return i
		}
	}
	return -1
}
