package rtc

import (
	"context"
	"fmt"

	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Config struct {
	ICEServers []string
	// PortMin/PortMax bound the ephemeral UDP range; zero leaves it to the OS.
	PortMin uint16
	PortMax uint16
}

func DefaultConfig() Config {
	return Config{ICEServers: []string{"stun:stun.l.google.com:19302"}}
}

func (c Config) configuration() webrtc.Configuration {
	var conf webrtc.Configuration
	if len(c.ICEServers) > 0 {
		conf.ICEServers = []webrtc.ICEServer{{URLs: c.ICEServers}}
	}
	return conf
}

// Factory creates peer connections sharing one pion API.
type Factory struct {
	api    *webrtc.API
	conf   webrtc.Configuration
	logger zerolog.Logger
}

func NewFactory(cfg Config) (*Factory, error) {
	logger := log.With().Str("module", "rtc").Logger()

	m := &webrtc.MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{LoggerFactory: newLoggerFactory(logger.Level(zerolog.WarnLevel))}
	if cfg.PortMin > 0 && cfg.PortMax > 0 {
		if err := se.SetEphemeralUDPPortRange(cfg.PortMin, cfg.PortMax); err != nil {
			return nil, fmt.Errorf("set udp port range: %w", err)
		}
	}

	api := webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(se),
	)
	return &Factory{api: api, conf: cfg.configuration(), logger: logger}, nil
}

func (f *Factory) NewPeer(ctx context.Context) (core.PeerConnection, error) {
	return f.newConnection(ctx)
}

func (f *Factory) newConnection(ctx context.Context) (*Connection, error) {
	pc, err := f.api.NewPeerConnection(f.conf)
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}
	return newConnection(ctx, pc, f.logger), nil
}
