package http

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dkeye/VoiceClient/internal/app/call"
	"github.com/dkeye/VoiceClient/internal/app/orch"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/gin-gonic/gin"
)

type callView struct {
	Active bool `json:"active"`
	call.Snapshot
	Error string `json:"error,omitempty"`
}

func newCallView(s call.Snapshot, ok bool) callView {
	v := callView{Active: ok && !s.State.Terminal(), Snapshot: s}
	if s.Err != nil {
		v.Error = s.Err.Error()
	}
	return v
}

type statusResponse struct {
	Self         domain.UserID          `json:"self"`
	Active       domain.ConversationRef `json:"active"`
	Connectivity orch.Connectivity      `json:"connectivity"`
	Call         callView               `json:"call"`
}

type sendRequest struct {
	Content string `json:"content"`
}

type startCallRequest struct {
	PeerID domain.UserID `json:"peer_id"`
	Video  bool          `json:"video"`
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrBadConversation),
		errors.Is(err, orch.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAuthExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrCallInProgress),
		errors.Is(err, domain.ErrNoCall),
		errors.Is(err, domain.ErrCallEnded):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMediaUnavailable):
		return http.StatusFailedDependency
	case errors.Is(err, orch.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrNotConnected):
		return http.StatusServiceUnavailable
	}
	return http.StatusBadGateway
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *handlers) status(c *gin.Context) {
	snap, ok := h.calls.Snapshot()
	c.JSON(http.StatusOK, statusResponse{
		Self:         h.chat.Self(),
		Active:       h.chat.Active(),
		Connectivity: h.chat.Connectivity(),
		Call:         newCallView(snap, ok),
	})
}

func (h *handlers) setActive(c *gin.Context) {
	var ref domain.ConversationRef
	if err := c.ShouldBindJSON(&ref); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation"})
		return
	}
	if err := h.chat.SetActive(c.Request.Context(), ref); err != nil {
		// the switch itself stands even when the history load failed
		if !errors.Is(err, domain.ErrBadConversation) {
			c.JSON(http.StatusOK, gin.H{"active": ref, "messages": h.chat.Messages(ref), "error": err.Error()})
			return
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": ref, "messages": h.chat.Messages(ref)})
}

func (h *handlers) messages(c *gin.Context) {
	ref := h.chat.Active()
	if kind := c.Query("kind"); kind != "" {
		ref = domain.ConversationRef{
			Kind:    domain.ConversationKind(kind),
			PeerID:  domain.UserID(c.Query("peer_id")),
			GroupID: domain.GroupID(c.Query("group_id")),
		}
		if err := ref.Validate(); err != nil {
			fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"conversation": ref, "messages": h.chat.Messages(ref)})
}

func (h *handlers) sendMessage(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid content"})
		return
	}
	msg, err := h.chat.SendText(c.Request.Context(), req.Content)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error(), "message": msg})
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *handlers) deleteMessage(c *gin.Context) {
	if !h.chat.DeleteForMe(domain.MessageID(c.Param("id"))) {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) callState(c *gin.Context) {
	snap, ok := h.calls.Snapshot()
	c.JSON(http.StatusOK, newCallView(snap, ok))
}

func (h *handlers) startCall(c *gin.Context) {
	var req startCallRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PeerID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid peer_id"})
		return
	}
	kind := domain.MediaAudio
	if req.Video {
		kind = domain.MediaVideo
	}
	// the call outlives this request
	ctx := context.WithoutCancel(c.Request.Context())
	if err := h.calls.StartCall(ctx, req.PeerID, kind); err != nil {
		fail(c, err)
		return
	}
	h.callState(c)
}

func (h *handlers) callAction(c *gin.Context, action func(context.Context) error) {
	if err := action(context.WithoutCancel(c.Request.Context())); err != nil {
		fail(c, err)
		return
	}
	h.callState(c)
}

func (h *handlers) acceptCall(c *gin.Context) { h.callAction(c, h.calls.AcceptCall) }
func (h *handlers) rejectCall(c *gin.Context) { h.callAction(c, h.calls.RejectCall) }
func (h *handlers) endCall(c *gin.Context)    { h.callAction(c, h.calls.EndCall) }

func (h *handlers) toggle(c *gin.Context, set func(bool) error) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing enabled flag"})
		return
	}
	if err := set(*req.Enabled); err != nil {
		fail(c, err)
		return
	}
	h.callState(c)
}

func (h *handlers) setMic(c *gin.Context)   { h.toggle(c, h.calls.SetMicEnabled) }
func (h *handlers) setVideo(c *gin.Context) { h.toggle(c, h.calls.SetVideoEnabled) }

// events streams hub events until the client goes away or is kicked.
func (h *handlers) events(c *gin.Context) {
	id, ch := h.hub.Subscribe()
	defer h.hub.Unsubscribe(id)

	snap, ok := h.calls.Snapshot()
	c.SSEvent("connectivity", h.chat.Connectivity())
	c.SSEvent("call", newCallView(snap, ok))
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, open := <-ch:
			if !open {
				return false
			}
			c.SSEvent(ev.Name, ev.Data)
			return true
		}
	})
}
