package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	router "github.com/dkeye/VoiceClient/internal/adapters/http"
	"github.com/dkeye/VoiceClient/internal/adapters/rest"
	"github.com/dkeye/VoiceClient/internal/adapters/rtc"
	sig "github.com/dkeye/VoiceClient/internal/adapters/signal"
	"github.com/dkeye/VoiceClient/internal/app/call"
	"github.com/dkeye/VoiceClient/internal/app/chat"
	"github.com/dkeye/VoiceClient/internal/app/orch"
	"github.com/dkeye/VoiceClient/internal/config"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// flagKeys maps run flags onto the config keys they override.
var flagKeys = map[string]string{
	"user":       "identity.user_id",
	"token":      "identity.token",
	"signal-url": "signal.url",
	"rest-url":   "rest.base_url",
	"host":       "host",
	"port":       "port",
	"static":     "static_path",
	"log-level":  "log_level",
	"video":      "call.video",
}

func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect to the chat backend and serve the local UI API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cmd.Flags())
		},
	}

	fs := cmd.Flags()
	fs.String("user", "", "user id to sign in as")
	fs.String("token", "", "session credential")
	fs.String("signal-url", "", "signaling websocket url")
	fs.String("rest-url", "", "chat REST base url (defaults to the signaling origin)")
	fs.String("host", "", "local API listen host")
	fs.Int("port", 0, "local API listen port")
	fs.String("static", "", "directory with UI assets")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.Bool("video", false, "enable the camera track")
	for name, key := range flagKeys {
		if err := config.BindKey(fs, name, key); err != nil {
			panic(err)
		}
	}
	return cmd
}

func run(ctx context.Context, fs *pflag.FlagSet) error {
	cfg, err := config.Load(fs)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", cfg.LogLevel).Msg("unknown log level, keeping info")
	}

	self, err := domain.ParseUserID(cfg.Identity.UserID)
	if err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	session := sig.NewManager(sig.Config{
		URL:        cfg.Signal.URL,
		BaseDelay:  cfg.Signal.BaseDelay,
		MaxDelay:   cfg.Signal.MaxDelay,
		PingPeriod: cfg.Signal.PingPeriod,
		ReadLimit:  cfg.Signal.ReadLimit,
		SendBuffer: cfg.Signal.SendBuffer,
	})

	peers, err := rtc.NewFactory(rtc.Config{
		ICEServers: cfg.RTC.ICEServers,
		PortMin:    cfg.RTC.PortMin,
		PortMax:    cfg.RTC.PortMax,
	})
	if err != nil {
		return err
	}
	media := rtc.NewSyntheticSource(rtc.MediaConfig{Video: cfg.Call.Video})

	engine := call.NewEngine(self, session, media, peers, call.Config{
		RingTimeout:    cfg.Call.RingTimeout,
		ConnectTimeout: cfg.Call.ConnectTimeout,
		DisposeDelay:   cfg.Call.DisposeDelay,
	})

	history := rest.NewClient(rest.Config{BaseURL: cfg.RESTBaseURL(), Timeout: cfg.REST.Timeout}, cfg.Identity.Token)

	client := orch.New(orch.Config{
		Self:         self,
		Credential:   cfg.Identity.Token,
		PollInterval: cfg.Chat.PollInterval,
		HistoryLimit: cfg.Chat.HistoryLimit,
		SendLimit:    cfg.Chat.SendLimit,
		SendWindow:   cfg.Chat.SendWindow,
	}, session, history, chat.NewStore(), engine)

	hub := router.NewHub(router.KickPolicy{}, 32)
	hub.Bind(client, engine)

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router.SetupRouter(cfg, client, engine, hub),
	}

	if err := client.Start(ctx); err != nil {
		return fmt.Errorf("start client: %w", err)
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("user", string(self)).Msg("voice client started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err = <-serveErr:
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("Shutting down")
	// SSE streams end with the hub; Shutdown would otherwise wait on them.
	hub.Close()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	client.Stop()
	log.Info().Msg("Client exited gracefully")
	return err
}
