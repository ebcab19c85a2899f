package domain

import "errors"

var (
	// ErrAuthExpired is fatal: the session is closed and the user must log in again.
	ErrAuthExpired = errors.New("authentication expired")
	// ErrNotConnected is returned by sends while the signaling socket is not open.
	ErrNotConnected = errors.New("signaling not connected")
	// ErrSessionClosed reports a clean close by the server; the session is not reopened.
	ErrSessionClosed = errors.New("signaling session closed by server")

	ErrMediaUnavailable     = errors.New("media denied or unavailable")
	ErrPeerConnectionFailed = errors.New("peer connection failed")
	ErrCallInProgress       = errors.New("another call is in progress")
	ErrNoCall               = errors.New("no active call")
	ErrCallEnded            = errors.New("call ended")
	ErrRemoteRejected       = errors.New("call rejected by peer")
	ErrRemoteBusy           = errors.New("peer is busy")
	ErrCallTimeout          = errors.New("call timed out")
)
