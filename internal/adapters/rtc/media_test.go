package rtc

import (
	"context"
	"testing"

	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTrack_States(t *testing.T) {
	lt := newLocalTrack(nil, nil)
	assert.Equal(t, TrackStateOk, lt.GetState())

	lt.SetEnabled(false)
	assert.Equal(t, TrackStateMuted, lt.GetState())
	lt.SetEnabled(true)
	assert.Equal(t, TrackStateOk, lt.GetState())

	lt.MarkDelete()
	lt.SetEnabled(true)
	assert.Equal(t, TrackStateDelete, lt.GetState(), "a deleted track never comes back")

	alive, err := lt.tick(frameDuration)
	assert.NoError(t, err)
	assert.False(t, alive)
}

func TestLocalTrack_MutedTickSkipsWrite(t *testing.T) {
	// a nil Track would panic if the muted tick tried to write
	lt := newLocalTrack(nil, opusSilence)
	lt.SetEnabled(false)
	alive, err := lt.tick(frameDuration)
	assert.NoError(t, err)
	assert.True(t, alive)
}

func TestSyntheticSource_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("audio", func(t *testing.T) {
		m, err := NewSyntheticSource(MediaConfig{}).Acquire(ctx, domain.MediaAudio)
		require.NoError(t, err)
		defer m.Stop()
		tracks := m.Tracks()
		require.Len(t, tracks, 1)
		assert.Equal(t, webrtc.RTPCodecTypeAudio, tracks[0].Kind())
	})

	t.Run("video without camera", func(t *testing.T) {
		_, err := NewSyntheticSource(MediaConfig{}).Acquire(ctx, domain.MediaVideo)
		assert.ErrorIs(t, err, ErrNoCamera)
	})

	t.Run("video", func(t *testing.T) {
		m, err := NewSyntheticSource(MediaConfig{Video: true}).Acquire(ctx, domain.MediaVideo)
		require.NoError(t, err)
		tracks := m.Tracks()
		require.Len(t, tracks, 2)
		assert.Equal(t, tracks[0].StreamID(), tracks[1].StreamID())
		assert.Equal(t, webrtc.RTPCodecTypeVideo, tracks[1].Kind())

		lm := m.(*localMedia)
		m.SetVideoEnabled(false)
		assert.Equal(t, TrackStateMuted, lm.video.GetState())
		m.Stop()
		m.Stop()
		assert.Equal(t, TrackStateDelete, lm.audio.GetState())
	})

	t.Run("cancelled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewSyntheticSource(MediaConfig{}).Acquire(cctx, domain.MediaAudio)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRemoteTrack_Accounting(t *testing.T) {
	rt := newRemoteTrack(nil)
	rt.account(&rtp.Packet{Payload: make([]byte, 100)})
	rt.account(&rtp.Packet{Payload: make([]byte, 60)})
	assert.Equal(t, TrackStats{Packets: 2, Bytes: 160}, rt.Stats())
}
