package core

import (
	"context"

	"github.com/dkeye/VoiceClient/internal/domain"
)

// Frame is a raw text payload of the signaling socket.
type Frame []byte

// SignalSender abstracts the single writer of the shared signaling session.
// Send must not block; it fails with domain.ErrNotConnected while the socket is down.
type SignalSender interface {
	Send(domain.SignalMessage) error
}

type SessionStatus string

const (
	SessionDisconnected SessionStatus = "disconnected"
	SessionConnecting   SessionStatus = "connecting"
	SessionOpen         SessionStatus = "open"
)

// Session is the one duplex signaling connection shared by chat and calls.
type Session interface {
	SignalSender
	Connect(ctx context.Context, identity domain.UserID, credential string) error
	OnMessage(func(domain.SignalMessage))
	OnStatus(func(SessionStatus))
	OnAuthExpired(func(error))
	// OnClosed fires when the server closes the session cleanly and no reconnect follows.
	OnClosed(func(error))
	Status() SessionStatus
	Close()
}
