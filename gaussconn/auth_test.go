package gaussconn

import (
	"encoding/hex"
	"testing"

	"github.com/opengauss-go/gaussconn/gaussproto"
)

func TestMD5PasswordIsDeterministicAndSaltSensitive(t *testing.T) {
	salt := [4]byte{1, 2, 3, 4}
	a := md5Password("s3cret", "svc", salt)
	b := md5Password("s3cret", "svc", salt)
	if a != b {
		t.Fatalf("md5Password should be deterministic for identical input")
	}
	if len(a) != 3+32 || a[:3] != "md5" {
		t.Fatalf("expected \"md5\" prefix plus 32 hex chars, got %q", a)
	}

	otherSalt := [4]byte{5, 6, 7, 8}
	c := md5Password("s3cret", "svc", otherSalt)
	if a == c {
		t.Fatalf("expected different salts to produce different hashes")
	}
}

func TestGaussSHA256ResponseIsDeterministicAndTokenSensitive(t *testing.T) {
	challenge := gaussproto.AuthenticationGaussSHA256{
		Salt:        hex.EncodeToString([]byte("somesalt")),
		ServerIters: 2048,
		Token:       "challenge-token-a",
	}

	a, err := gaussSHA256Response("s3cret", challenge)
	if err != nil {
		t.Fatalf("gaussSHA256Response: %v", err)
	}
	b, err := gaussSHA256Response("s3cret", challenge)
	if err != nil {
		t.Fatalf("gaussSHA256Response: %v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("expected deterministic output for identical input")
	}

	challenge.Token = "challenge-token-b"
	c, err := gaussSHA256Response("s3cret", challenge)
	if err != nil {
		t.Fatalf("gaussSHA256Response: %v", err)
	}
	if string(a) == string(c) {
		t.Fatalf("expected a different server token to change the client proof")
	}
}

func TestGaussSHA256ResponseRejectsInvalidSalt(t *testing.T) {
	_, err := gaussSHA256Response("s3cret", gaussproto.AuthenticationGaussSHA256{
		Salt:        "not-hex!!",
		ServerIters: 2048,
		Token:       "t",
	})
	if err == nil {
		t.Fatalf("expected an error for a non-hex salt")
	}
}

func TestParseServerVersion(t *testing.T) {
	cases := []struct {
		raw     string
		wantNil bool
		want    string
	}{
		{raw: "9.2.4", want: "9.2.4"},
		{raw: "13.3 (openGauss 5.0.0)", want: "13.3.0"},
		{raw: "", wantNil: true},
		{raw: "not-a-version", wantNil: true},
	}
	for _, tc := range cases {
		v := parseServerVersion(tc.raw)
		if tc.wantNil {
			if v != nil {
				t.Errorf("parseServerVersion(%q) = %v, want nil", tc.raw, v)
			}
			continue
		}
		if v == nil || v.String() != tc.want {
			t.Errorf("parseServerVersion(%q) = %v, want %s", tc.raw, v, tc.want)
		}
	}
}

func TestServerVersionAtLeast(t *testing.T) {
	c := &Connector{params: map[string]string{}}
	c.setParam("server_version", "9.2.4")

	if !c.ServerVersionAtLeast("9.0.0") {
		t.Fatalf("expected 9.2.4 >= 9.0.0")
	}
	if c.ServerVersionAtLeast("10.0.0") {
		t.Fatalf("expected 9.2.4 < 10.0.0")
	}
}

func TestServerVersionAtLeastIsFalseWhenUnknown(t *testing.T) {
	c := &Connector{params: map[string]string{}}
	if c.ServerVersionAtLeast("9.0.0") {
		t.Fatalf("expected false when no server_version has been observed")
	}
}
