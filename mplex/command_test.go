package mplex

import (
	"testing"

	"github.com/opengauss-go/gaussconn/gaussconn"
	"github.com/stretchr/testify/assert"
)

func TestCommandHandleApproxBytes(t *testing.T) {
	h := newCommandHandle("SELECT 1", nil)
	assert.Equal(t, len("SELECT 1"), h.approxBytes())

	withParams := newCommandHandle("SELECT $1", []gaussconn.Param{{Value: []byte("hello")}})
	assert.Greater(t, withParams.approxBytes(), len("SELECT $1"))
}

func TestCommandHandleCompleteIsIdempotent(t *testing.T) {
	h := newCommandHandle("SELECT 1", nil)
	h.complete(CommandResult{Tag: "SELECT 1"})
	h.complete(CommandResult{Tag: "SHOULD NOT OVERWRITE"})
	assert.Equal(t, gaussconn.CommandTag("SELECT 1"), h.result.Tag)
}

func TestCommandHandleMarkSkippedBeforeWrite(t *testing.T) {
	h := newCommandHandle("SELECT 1", nil)
	assert.True(t, h.markSkipped())
	assert.False(t, h.wasWritten())
}

func TestCommandHandleMarkSkippedAfterWriteFails(t *testing.T) {
	h := newCommandHandle("SELECT 1", nil)
	h.markWritten()
	assert.False(t, h.markSkipped(), "a written handle can no longer be skipped, only cancelled via the connector")
}
