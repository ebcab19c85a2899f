package domain

type CallDirection string

const (
	CallIncoming CallDirection = "incoming"
	CallOutgoing CallDirection = "outgoing"
)

type MediaKind string

const (
	MediaAudio MediaKind = "audio"
	MediaVideo MediaKind = "audio+video"
)

func (k MediaKind) HasVideo() bool { return k == MediaVideo }

type CallState string

const (
	CallStateCalling    CallState = "calling"
	CallStateIncoming   CallState = "incoming"
	CallStateConnecting CallState = "connecting"
	CallStateConnected  CallState = "connected"
	CallStateEnded      CallState = "ended"
)

func (s CallState) Terminal() bool { return s == CallStateEnded }

// CallResponse is the verb of a call-response message.
type CallResponse string

const (
	ResponseAccept CallResponse = "accept"
	ResponseReject CallResponse = "reject"
	ResponseBusy   CallResponse = "busy"
)

func (r CallResponse) Valid() bool {
	switch r {
	case ResponseAccept, ResponseReject, ResponseBusy:
		return true
	}
	return false
}
