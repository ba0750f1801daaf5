package postgres

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_InflateCompressedChanges(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	payload := []byte(`{"name":"` + string(bytes.Repeat([]byte("x"), DefaultCompressThreshold)) + `"}`)
	e := AuditEntry{
		ChangesCompressed: s.encoder.EncodeAll(payload, nil),
		CompressionAlgo:   CompressionZstd,
	}
	assert.Less(t, len(e.ChangesCompressed), len(payload))

	require.NoError(t, s.inflate(&e))
	assert.Equal(t, payload, []byte(e.Changes))
	assert.Nil(t, e.ChangesCompressed)
}

func TestAuditService_InflateLeavesPlainChanges(t *testing.T) {
	s, err := NewAuditService(nil)
	require.NoError(t, err)

	e := AuditEntry{Changes: []byte(`{"a":1}`), CompressionAlgo: CompressionNone}
	require.NoError(t, s.inflate(&e))
	assert.JSONEq(t, `{"a":1}`, string(e.Changes))
}
