package types_test

import (
	"errors"
	"testing"

	"github.com/downfa11-org/go-relay/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageWireFormat(t *testing.T) {
	m := types.Message{ID: "m1", Content: "hi", Author: "a", Timestamp: 1000}

	data, err := m.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"m1","content":"hi","author":"a","timestamp":1000}`, string(data))

	decoded, err := types.DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, m, decoded)
}

func TestDecodeMessageRejectsGarbage(t *testing.T) {
	_, err := types.DecodeMessage([]byte("not json"))
	assert.Error(t, err)

	_, err = types.DecodeMessage([]byte(`{"content":"no id"}`))
	assert.Error(t, err)
}

func TestMessageValidate(t *testing.T) {
	assert.NoError(t, types.Message{ID: "x", Timestamp: 1}.Validate())

	err := types.Message{Timestamp: 1}.Validate()
	assert.ErrorIs(t, err, types.ErrInvalidMessage)

	err = types.Message{ID: "x"}.Validate()
	assert.ErrorIs(t, err, types.ErrInvalidMessage)
}

func TestPartitionPositionLag(t *testing.T) {
	lag, ok := types.PartitionPosition{CommittedOffset: 42, HighWaterMark: 50}.Lag()
	assert.True(t, ok)
	assert.Equal(t, int64(8), lag)

	_, ok = types.PartitionPosition{CommittedOffset: -1, HighWaterMark: 50}.Lag()
	assert.False(t, ok)
}

func TestStoreErrorMatching(t *testing.T) {
	cause := errors.New("connection refused")
	err := types.NewStoreWriteError("append", cause)

	assert.ErrorIs(t, err, types.ErrStoreWrite)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, types.ErrStoreRead)

	var se *types.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "append", se.Op)
}

func TestSendErrorUnwrap(t *testing.T) {
	err := &types.SendError{Topic: "t", ID: "m1", Err: types.ErrTransientIO}
	assert.ErrorIs(t, err, types.ErrTransientIO)
	assert.Contains(t, err.Error(), "m1")
}
