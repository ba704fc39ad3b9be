// Package ipc provides inter-process communication between the rxoverlay
// daemon and client applications (rxoverlayctl, the settings GUI, a second
// daemon launch forwarding its arguments).
//
// The protocol is a request/response exchange of length-prefixed frames:
// a fixed 16-byte header followed by a JSON payload. Requests carry an ID
// that the response echoes, so a client may pipeline requests over one
// connection.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Wire identity. ReadHeader rejects frames whose magic differs or whose
// version is newer than this build understands.
const (
	ProtocolVersion = 1
	ProtocolMagic   = 0x52584950 // "RXIP"
)

// MessageType tags a frame with its meaning.
type MessageType uint16

// Responses use their request's type plus one; MsgError answers any
// request that failed outside its own semantics.
const (
	MsgPing  MessageType = 0x0001
	MsgPong  MessageType = 0x0002
	MsgError MessageType = 0x0003

	MsgStatusRequest  MessageType = 0x0100
	MsgStatusResponse MessageType = 0x0101

	MsgToggle     MessageType = 0x0200
	MsgToggleResp MessageType = 0x0201
	MsgShow       MessageType = 0x0202
	MsgShowResp   MessageType = 0x0203
	MsgHide       MessageType = 0x0204
	MsgHideResp   MessageType = 0x0205
	MsgExit       MessageType = 0x0206
	MsgExitResp   MessageType = 0x0207

	MsgGetHistory     MessageType = 0x0300
	MsgGetHistoryResp MessageType = 0x0301

	MsgReloadConfig     MessageType = 0x0400
	MsgReloadConfigResp MessageType = 0x0401
)

// Header is the fixed preamble of every frame. Multi-byte fields are
// big-endian on the wire.
type Header struct {
	Magic     uint32
	Version   uint8
	Flags     uint8
	Type      MessageType
	RequestID uint32
	Length    uint32
}

// HeaderSize is the encoded size of a Header.
const HeaderSize = 16

// FlagJSON marks the payload as JSON-encoded. All current messages set it;
// the bit exists so a later version can add another encoding.
const FlagJSON uint8 = 0x01

// maxPayloadSize bounds a frame. History responses are the largest
// payload and stay far below this.
const maxPayloadSize = 1 << 20

func (h *Header) appendTo(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, h.Magic)
	buf = append(buf, h.Version, h.Flags)
	buf = binary.BigEndian.AppendUint16(buf, uint16(h.Type))
	buf = binary.BigEndian.AppendUint32(buf, h.RequestID)
	return binary.BigEndian.AppendUint32(buf, h.Length)
}

// Write encodes the header to w.
func (h *Header) Write(w io.Writer) error {
	_, err := w.Write(h.appendTo(make([]byte, 0, HeaderSize)))
	return err
}

// ReadHeader decodes one header from r, checking magic and version.
func ReadHeader(r io.Reader) (*Header, error) {
	var buf [HeaderSize]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, err
	}

	h := Header{
		Magic:     binary.BigEndian.Uint32(buf[0:]),
		Version:   buf[4],
		Flags:     buf[5],
		Type:      MessageType(binary.BigEndian.Uint16(buf[6:])),
		RequestID: binary.BigEndian.Uint32(buf[8:]),
		Length:    binary.BigEndian.Uint32(buf[12:]),
	}
	switch {
	case h.Magic != ProtocolMagic:
		return nil, fmt.Errorf("invalid magic number: %x", h.Magic)
	case h.Version > ProtocolVersion:
		return nil, fmt.Errorf("unsupported protocol version: %d", h.Version)
	}
	return &h, nil
}

// Message is one frame: header plus raw payload bytes.
type Message struct {
	Header  Header
	Payload []byte
}

// NewMessage builds a frame of the given type around payload.
func NewMessage(msgType MessageType, requestID uint32, payload []byte) *Message {
	return &Message{
		Header: Header{
			Magic:     ProtocolMagic,
			Version:   ProtocolVersion,
			Flags:     FlagJSON,
			Type:      msgType,
			RequestID: requestID,
			Length:    uint32(len(payload)),
		},
		Payload: payload,
	}
}

// Write sends the frame as a single write, header and payload together,
// so concurrent writers on one connection cannot interleave frames.
func (m *Message) Write(w io.Writer) error {
	buf := make([]byte, 0, HeaderSize+len(m.Payload))
	buf = m.Header.appendTo(buf)
	buf = append(buf, m.Payload...)
	_, err := w.Write(buf)
	return err
}

// ReadMessage reads one complete frame from r.
func ReadMessage(r io.Reader) (*Message, error) {
	h, err := ReadHeader(r)
	if err != nil {
		return nil, err
	}
	if h.Length > maxPayloadSize {
		return nil, fmt.Errorf("payload too large: %d bytes", h.Length)
	}

	m := &Message{Header: *h}
	if h.Length > 0 {
		m.Payload = make([]byte, h.Length)
		if _, err := io.ReadFull(r, m.Payload); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Payload types, one pair per request/response exchange.

// ErrorResponse is the payload of an MsgError frame.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Error codes carried in ErrorResponse.Code.
const (
	ErrUnknown        = 1
	ErrInvalidRequest = 2
	ErrNotFound       = 3
	ErrInternalError  = 4
	ErrUnavailable    = 5
)

// StatusRequest asks for a daemon status report.
type StatusRequest struct {
	IncludeMetrics bool `json:"include_metrics,omitempty"`
}

// HookStatus describes the keyboard hook state. Degraded means the hook
// failed to install and the daemon is running without global hotkeys.
type HookStatus struct {
	Running  bool   `json:"running"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
}

// HistoryStatus summarizes the action history database.
type HistoryStatus struct {
	Enabled bool  `json:"enabled"`
	Total   int64 `json:"total"`
}

// StatusResponse is the daemon's status report.
type StatusResponse struct {
	Version     string         `json:"version"`
	Uptime      time.Duration  `json:"uptime"`
	StartedAt   time.Time      `json:"started_at"`
	Enabled     bool           `json:"enabled"`
	Minimized   bool           `json:"minimized"`
	Visible     bool           `json:"visible"`
	TargetKnown bool           `json:"target_known"`
	Hook        HookStatus     `json:"hook"`
	History     HistoryStatus  `json:"history"`
	Metrics     map[string]any `json:"metrics,omitempty"`
}

// ToggleResponse acknowledges an enabled-state toggle.
type ToggleResponse struct {
	Success bool   `json:"success"`
	Enabled bool   `json:"enabled"`
	Error   string `json:"error,omitempty"`
}

// ShowResponse acknowledges a show request.
type ShowResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// HideResponse acknowledges a hide request.
type HideResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ExitResponse acknowledges an exit request.
type ExitResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// GetHistoryRequest asks for recent action history.
type GetHistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// ActionInfo describes one recorded action.
type ActionInfo struct {
	At          time.Time `json:"at"`
	Action      string    `json:"action"`
	TargetTitle string    `json:"target_title,omitempty"`
	Outcome     string    `json:"outcome"`
	Detail      string    `json:"detail,omitempty"`
}

// GetHistoryResponse lists recent actions, newest first.
type GetHistoryResponse struct {
	Total   int64        `json:"total"`
	Actions []ActionInfo `json:"actions"`
}

// ReloadConfigResponse acknowledges a configuration reload.
type ReloadConfigResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Encode marshals a payload to JSON bytes.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode unmarshals JSON bytes into v.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// NewErrorMessage builds an MsgError frame answering requestID.
func NewErrorMessage(requestID uint32, code int, message string) *Message {
	payload, _ := Encode(&ErrorResponse{
		Code:    code,
		Message: message,
	})
	return NewMessage(MsgError, requestID, payload)
}

// NewResponse builds a response frame with an encoded payload.
func NewResponse(msgType MessageType, requestID uint32, v any) (*Message, error) {
	payload, err := Encode(v)
	if err != nil {
		return nil, err
	}
	return NewMessage(msgType, requestID, payload), nil
}
