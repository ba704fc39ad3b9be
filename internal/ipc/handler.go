// Package ipc provides the daemon-side handler for control pipe requests.
package ipc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"rxoverlay/internal/metrics"
	"rxoverlay/internal/store"
)

// uiCallTimeout bounds how long a control request waits for the UI
// thread. A stuck message loop fails the request instead of wedging the
// connection goroutine.
const uiCallTimeout = 3 * time.Second

// exitDelay defers daemon shutdown so the acknowledgement reaches the
// client before the pipe closes.
const exitDelay = 100 * time.Millisecond

// Controller is the slice of the overlay coordinator the control pipe
// drives. Mutating calls are marshaled onto the UI thread; the accessors
// are safe from any goroutine.
type Controller interface {
	ToggleEnabled()
	Show()
	Hide()
	Exit()
	Enabled() bool
	Minimized() bool
	Visible() bool
	TargetKnown() bool
}

// HistoryReader provides read access to the action history.
type HistoryReader interface {
	RecentActions(limit int) ([]store.ActionRecord, error)
	Stats() (*store.Stats, error)
}

// DaemonHandler implements the Handler interface for the rxoverlay daemon
type DaemonHandler struct {
	version   string
	startedAt time.Time
	control   Controller
	runUI     func(func())
	hookState func() HookStatus
	history   HistoryReader
	metrics   *metrics.OverlayMetrics
	reload    func() error
	logger    *slog.Logger
}

// DaemonHandlerConfig configures the daemon handler
type DaemonHandlerConfig struct {
	Version string

	// Control is the coordinator surface.
	Control Controller

	// RunOnUI marshals a call onto the UI thread. Nil runs calls inline,
	// which tests use.
	RunOnUI func(func())

	// HookState reports the keyboard hook state for status responses.
	HookState func() HookStatus

	// History serves MsgGetHistory. Nil means history is disabled.
	History HistoryReader

	// Metrics feeds status responses when the client asks for counters.
	Metrics *metrics.OverlayMetrics

	// Reload re-reads and applies the configuration file. Nil rejects
	// MsgReloadConfig.
	Reload func() error

	Logger *slog.Logger
}

// NewDaemonHandler creates a new daemon handler
func NewDaemonHandler(cfg DaemonHandlerConfig) *DaemonHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &DaemonHandler{
		version:   cfg.Version,
		startedAt: time.Now(),
		control:   cfg.Control,
		runUI:     cfg.RunOnUI,
		hookState: cfg.HookState,
		history:   cfg.History,
		metrics:   cfg.Metrics,
		reload:    cfg.Reload,
		logger:    logger.With("component", "ipc"),
	}
}

// HandleMessage processes an IPC message
func (h *DaemonHandler) HandleMessage(ctx context.Context, msg *Message) (*Message, error) {
	switch msg.Header.Type {
	case MsgStatusRequest:
		return h.handleStatus(msg)

	case MsgToggle:
		return h.handleToggle(msg)

	case MsgShow:
		return h.handleShow(msg)

	case MsgHide:
		return h.handleHide(msg)

	case MsgExit:
		return h.handleExit(msg)

	case MsgGetHistory:
		return h.handleGetHistory(msg)

	case MsgReloadConfig:
		return h.handleReloadConfig(msg)

	default:
		return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest,
			fmt.Sprintf("unknown message type: %d", msg.Header.Type)), nil
	}
}

// onUI runs fn on the UI thread and waits for it to finish. It returns
// false when the UI thread does not get to it in time.
func (h *DaemonHandler) onUI(fn func()) bool {
	if h.runUI == nil {
		fn()
		return true
	}

	done := make(chan struct{})
	h.runUI(func() {
		fn()
		close(done)
	})

	select {
	case <-done:
		return true
	case <-time.After(uiCallTimeout):
		return false
	}
}

// handleStatus handles status requests
func (h *DaemonHandler) handleStatus(msg *Message) (*Message, error) {
	var req StatusRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
		}
	}

	resp := &StatusResponse{
		Version:     h.version,
		Uptime:      time.Since(h.startedAt),
		StartedAt:   h.startedAt,
		Enabled:     h.control.Enabled(),
		Minimized:   h.control.Minimized(),
		Visible:     h.control.Visible(),
		TargetKnown: h.control.TargetKnown(),
	}

	if h.hookState != nil {
		resp.Hook = h.hookState()
	}

	if h.history != nil {
		resp.History.Enabled = true
		if stats, err := h.history.Stats(); err == nil {
			resp.History.Total = stats.Total
		} else {
			h.logger.Warn("history stats failed", "error", err)
		}
	}

	if req.IncludeMetrics && h.metrics != nil {
		resp.Metrics = h.metrics.Snapshot()
	}

	return NewResponse(MsgStatusResponse, msg.Header.RequestID, resp)
}

// handleToggle handles enabled-state toggle requests
func (h *DaemonHandler) handleToggle(msg *Message) (*Message, error) {
	var enabled bool
	if !h.onUI(func() {
		h.control.ToggleEnabled()
		enabled = h.control.Enabled()
	}) {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, "ui thread unresponsive"), nil
	}

	resp := &ToggleResponse{Success: true, Enabled: enabled}
	return NewResponse(MsgToggleResp, msg.Header.RequestID, resp)
}

// handleShow handles show requests
func (h *DaemonHandler) handleShow(msg *Message) (*Message, error) {
	if !h.onUI(h.control.Show) {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, "ui thread unresponsive"), nil
	}

	resp := &ShowResponse{Success: true}
	return NewResponse(MsgShowResp, msg.Header.RequestID, resp)
}

// handleHide handles hide requests
func (h *DaemonHandler) handleHide(msg *Message) (*Message, error) {
	if !h.onUI(h.control.Hide) {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, "ui thread unresponsive"), nil
	}

	resp := &HideResponse{Success: true}
	return NewResponse(MsgHideResp, msg.Header.RequestID, resp)
}

// handleExit handles exit requests
func (h *DaemonHandler) handleExit(msg *Message) (*Message, error) {
	h.logger.Info("exit requested over control pipe")

	// Acknowledge first; the shutdown runs after the reply went out.
	time.AfterFunc(exitDelay, func() {
		h.onUI(h.control.Exit)
	})

	resp := &ExitResponse{Success: true}
	return NewResponse(MsgExitResp, msg.Header.RequestID, resp)
}

// handleGetHistory handles history requests
func (h *DaemonHandler) handleGetHistory(msg *Message) (*Message, error) {
	if h.history == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrUnavailable, "history is disabled"), nil
	}

	var req GetHistoryRequest
	if len(msg.Payload) > 0 {
		if err := Decode(msg.Payload, &req); err != nil {
			return NewErrorMessage(msg.Header.RequestID, ErrInvalidRequest, "invalid request"), nil
		}
	}

	rows, err := h.history.RecentActions(req.Limit)
	if err != nil {
		return NewErrorMessage(msg.Header.RequestID, ErrInternalError, err.Error()), nil
	}

	resp := &GetHistoryResponse{
		Actions: make([]ActionInfo, 0, len(rows)),
	}
	for _, r := range rows {
		resp.Actions = append(resp.Actions, ActionInfo{
			At:          time.Unix(0, r.AtNs),
			Action:      r.Action,
			TargetTitle: r.TargetTitle,
			Outcome:     r.Outcome,
			Detail:      r.Detail,
		})
	}

	if stats, err := h.history.Stats(); err == nil {
		resp.Total = stats.Total
	} else {
		resp.Total = int64(len(rows))
	}

	return NewResponse(MsgGetHistoryResp, msg.Header.RequestID, resp)
}

// handleReloadConfig handles configuration reload requests
func (h *DaemonHandler) handleReloadConfig(msg *Message) (*Message, error) {
	if h.reload == nil {
		return NewErrorMessage(msg.Header.RequestID, ErrUnavailable, "reload is not supported"), nil
	}

	resp := &ReloadConfigResponse{Success: true}
	if err := h.reload(); err != nil {
		h.logger.Warn("config reload failed", "error", err)
		resp.Success = false
		resp.Error = err.Error()
	}

	return NewResponse(MsgReloadConfigResp, msg.Header.RequestID, resp)
}
