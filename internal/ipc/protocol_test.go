package ipc

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := &Header{
		Magic:     ProtocolMagic,
		Version:   ProtocolVersion,
		Flags:     FlagJSON,
		Type:      MsgStatusRequest,
		RequestID: 42,
		Length:    128,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))
	require.Equal(t, HeaderSize, buf.Len())

	got, err := ReadHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestReadHeaderRejectsBadMagic(t *testing.T) {
	buf := make([]byte, HeaderSize)
	binary.BigEndian.PutUint32(buf[0:4], 0xdeadbeef)

	_, err := ReadHeader(bytes.NewReader(buf))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid magic")
}

func TestReadHeaderRejectsNewerVersion(t *testing.T) {
	h := &Header{
		Magic:   ProtocolMagic,
		Version: ProtocolVersion + 1,
		Type:    MsgPing,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	_, err := ReadHeader(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported protocol version")
}

func TestMessageRoundTrip(t *testing.T) {
	payload, err := Encode(&GetHistoryRequest{Limit: 7})
	require.NoError(t, err)

	msg := NewMessage(MsgGetHistory, 9, payload)

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)

	assert.Equal(t, MsgGetHistory, got.Header.Type)
	assert.Equal(t, uint32(9), got.Header.RequestID)

	var req GetHistoryRequest
	require.NoError(t, Decode(got.Payload, &req))
	assert.Equal(t, 7, req.Limit)
}

func TestMessageRoundTripEmptyPayload(t *testing.T) {
	msg := NewMessage(MsgPing, 1, nil)

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))

	got, err := ReadMessage(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgPing, got.Header.Type)
	assert.Empty(t, got.Payload)
}

func TestReadMessageRejectsOversizedPayload(t *testing.T) {
	h := &Header{
		Magic:   ProtocolMagic,
		Version: ProtocolVersion,
		Type:    MsgGetHistoryResp,
		Length:  maxPayloadSize + 1,
	}

	var buf bytes.Buffer
	require.NoError(t, h.Write(&buf))

	_, err := ReadMessage(&buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "payload too large")
}

func TestReadMessageTruncatedPayload(t *testing.T) {
	msg := NewMessage(MsgStatusResponse, 3, []byte(`{"version":"x"}`))

	var buf bytes.Buffer
	require.NoError(t, msg.Write(&buf))

	// Drop the payload tail.
	data := buf.Bytes()[:HeaderSize+4]

	_, err := ReadMessage(bytes.NewReader(data))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestNewErrorMessage(t *testing.T) {
	msg := NewErrorMessage(5, ErrInvalidRequest, "bad frame")

	assert.Equal(t, MsgError, msg.Header.Type)
	assert.Equal(t, uint32(5), msg.Header.RequestID)

	var resp ErrorResponse
	require.NoError(t, Decode(msg.Payload, &resp))
	assert.Equal(t, ErrInvalidRequest, resp.Code)
	assert.Equal(t, "bad frame", resp.Message)
}

func TestDecodeResponseTurnsErrorFrameIntoError(t *testing.T) {
	msg := NewErrorMessage(1, ErrUnavailable, "history is disabled")

	var out GetHistoryResponse
	err := decodeResponse(msg, MsgGetHistoryResp, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history is disabled")
}

func TestDecodeResponseRejectsWrongType(t *testing.T) {
	msg := NewMessage(MsgPong, 1, nil)

	err := decodeResponse(msg, MsgStatusResponse, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected response type")
}
