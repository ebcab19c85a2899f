package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNoCamera is returned when video is requested from a source without one.
var ErrNoCamera = errors.New("no video capture device")

// opusSilence is a single 20ms Opus frame of silence.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const frameDuration = 20 * time.Millisecond

type MediaConfig struct {
	// Video enables the camera track; without it only audio calls can be placed or accepted.
	Video bool
}

// SyntheticSource is a headless capture source: its audio track carries Opus
// silence and its video track is left for an external encoder.
type SyntheticSource struct {
	cfg    MediaConfig
	logger zerolog.Logger
}

func NewSyntheticSource(cfg MediaConfig) *SyntheticSource {
	return &SyntheticSource{cfg: cfg, logger: log.With().Str("module", "rtc.media").Logger()}
}

func (s *SyntheticSource) Acquire(ctx context.Context, kind domain.MediaKind) (core.LocalMedia, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if kind.HasVideo() && !s.cfg.Video {
		return nil, ErrNoCamera
	}
	stream := "voice-" + uuid.NewString()

	audio, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", stream)
	if err != nil {
		return nil, fmt.Errorf("audio track: %w", err)
	}
	m := &localMedia{audio: newLocalTrack(audio, opusSilence), done: make(chan struct{}), logger: s.logger}
	if kind.HasVideo() {
		video, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video", stream)
		if err != nil {
			return nil, fmt.Errorf("video track: %w", err)
		}
		m.video = newLocalTrack(video, nil)
	}
	go m.pump()
	s.logger.Info().Str("stream", stream).Str("kind", string(kind)).Msg("media acquired")
	return m, nil
}

type localMedia struct {
	audio  *localTrack
	video  *localTrack
	done   chan struct{}
	once   sync.Once
	logger zerolog.Logger
}

func (m *localMedia) Tracks() []webrtc.TrackLocal {
	tracks := []webrtc.TrackLocal{m.audio.Track}
	if m.video != nil {
		tracks = append(tracks, m.video.Track)
	}
	return tracks
}

func (m *localMedia) SetAudioEnabled(enabled bool) { m.audio.SetEnabled(enabled) }

func (m *localMedia) SetVideoEnabled(enabled bool) {
	if m.video != nil {
		m.video.SetEnabled(enabled)
	}
}

func (m *localMedia) Stop() {
	m.once.Do(func() {
		m.audio.MarkDelete()
		if m.video != nil {
			m.video.MarkDelete()
		}
		close(m.done)
	})
}

func (m *localMedia) pump() {
	ticker := time.NewTicker(frameDuration)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			alive, err := m.audio.tick(frameDuration)
			if err != nil {
				m.logger.Warn().Err(err).Msg("audio write failed")
			}
			if !alive {
				return
			}
		}
	}
}
