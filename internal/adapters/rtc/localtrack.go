package rtc

import (
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

func (s TrackState) String() string {
	switch s {
	case TrackStateOk:
		return "ok"
	case TrackStateMuted:
		return "muted"
	case TrackStateDelete:
		return "delete"
	}
	return "unknown"
}

// localTrack is one outgoing capture track fed by the source pump.
type localTrack struct {
	Track *webrtc.TrackLocalStaticSample
	// frame is written every tick while the track is live; nil means the
	// track only carries what an external encoder writes.
	frame []byte
	state atomic.Int32 // Zero by default (TrackStateOk)
}

func newLocalTrack(track *webrtc.TrackLocalStaticSample, frame []byte) *localTrack {
	return &localTrack{Track: track, frame: frame}
}

func (lt *localTrack) GetState() TrackState {
	return TrackState(lt.state.Load())
}

// SetEnabled toggles between ok and muted. A deleted track stays deleted.
func (lt *localTrack) SetEnabled(enabled bool) {
	next := TrackStateMuted
	if enabled {
		next = TrackStateOk
	}
	for {
		cur := lt.state.Load()
		if TrackState(cur) == TrackStateDelete {
			return
		}
		if lt.state.CompareAndSwap(cur, int32(next)) {
			return
		}
	}
}

func (lt *localTrack) MarkDelete() {
	lt.state.Store(int32(TrackStateDelete))
}

// tick writes one frame when the track is live. It reports false once the
// track is deleted or the write failed.
func (lt *localTrack) tick(d time.Duration) (bool, error) {
	switch lt.GetState() {
	case TrackStateDelete:
		return false, nil
	case TrackStateMuted:
		return true, nil
	}
	if lt.frame == nil {
		return true, nil
	}
	if err := lt.Track.WriteSample(media.Sample{Data: lt.frame, Duration: d}); err != nil {
		lt.MarkDelete()
		return false, err
	}
	return true, nil
}
