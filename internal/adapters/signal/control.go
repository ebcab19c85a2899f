package signal

import (
	"errors"
	"time"

	"github.com/gorilla/websocket"
)

type CloseClass int

const (
	// CloseTransient closes are retried with backoff.
	CloseTransient CloseClass = iota
	// CloseFatal closes mean the credential was rejected; never retried.
	CloseFatal
	// CloseClean closes were requested by either side; never retried.
	CloseClean
)

func (c CloseClass) String() string {
	switch c {
	case CloseFatal:
		return "fatal"
	case CloseClean:
		return "clean"
	default:
		return "transient"
	}
}

// ClassifyClose maps a websocket close code onto the reconnect policy.
func ClassifyClose(code int) CloseClass {
	switch {
	case code == websocket.CloseNormalClosure:
		return CloseClean
	case code == websocket.ClosePolicyViolation, code >= 4000 && code <= 4003:
		return CloseFatal
	default:
		return CloseTransient
	}
}

// closeCode extracts the close code of a read error; anything else is an abnormal drop.
func closeCode(err error) int {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return websocket.CloseAbnormalClosure
}

// Backoff returns min(base * 2^attempt, max).
func Backoff(base, max time.Duration, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		return max
	}
	d := base << attempt
	if d <= 0 || d > max {
		return max
	}
	return d
}
