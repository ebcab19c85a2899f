package orch

import (
	"context"
	"errors"
	"time"

	"github.com/dkeye/VoiceClient/internal/app"
	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
)

// onMessage runs on the session's read pump: route once, publish once.
func (o *Orchestrator) onMessage(ctx context.Context, msg domain.SignalMessage) {
	decision := app.Route(msg, o.Active(), o.cfg.Self)
	topic, ok := app.TopicFor(decision)
	if !ok {
		o.logger.Debug().
			Str("type", string(msg.Type)).
			Str("conversation", decision.Conversation.Key()).
			Msg("message not for the active view")
		return
	}
	if err := o.bus.Publish(ctx, topic, app.Event{Decision: decision, Message: msg}); err != nil {
		o.logger.Debug().Err(err).Str("type", string(msg.Type)).Msg("publish dropped")
	}
}

func (o *Orchestrator) consumeChat(ctx context.Context, events <-chan app.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.bus.Done():
			return
		case ev := <-events:
			switch ev.Decision.Action {
			case app.ActionAppend:
				o.store.AppendRemote(ev.Decision.Conversation, ev.Message.ChatMessage())
			case app.ActionUpdate:
				if !o.store.ApplyUpdate(ev.Message.ID, ev.Message.Patch()) {
					o.logger.Debug().Str("id", string(ev.Message.ID)).Msg("update for unloaded message")
				}
			}
		}
	}
}

func (o *Orchestrator) consumeCalls(ctx context.Context, events <-chan app.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-o.bus.Done():
			return
		case ev := <-events:
			o.calls.HandleSignal(ctx, ev.Message)
		}
	}
}

func (o *Orchestrator) onStatus(s core.SessionStatus) {
	o.mu.Lock()
	prev := o.status
	o.status = s
	if s == core.SessionOpen {
		o.authErr = nil
		o.closed = false
	}
	ctx := o.ctx
	o.mu.Unlock()

	o.logger.Info().Str("status", string(s)).Msg("session status")
	if s == core.SessionOpen && prev != core.SessionOpen && ctx != nil {
		o.calls.HandleReconnected(ctx)
	}
	o.publishConnectivity()
}

func (o *Orchestrator) onAuthExpired(err error) {
	o.mu.Lock()
	already := o.authErr != nil
	o.authErr = err
	o.mu.Unlock()
	if already {
		return
	}
	o.logger.Warn().Err(err).Msg("authentication expired")
	o.calls.HandleSessionLost(err)
	o.publishConnectivity()
}

// onClosed runs when the server ended the session for good; a live call cannot survive it.
func (o *Orchestrator) onClosed(err error) {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	o.logger.Warn().Err(err).Msg("session closed by server")
	o.calls.HandleSessionLost(err)
	o.publishConnectivity()
}

func (o *Orchestrator) authExpired() bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.authErr != nil
}

// poll reconciles the active conversation with the server on a fixed interval.
func (o *Orchestrator) poll(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if o.authExpired() {
				continue
			}
			if err := o.refresh(ctx); err != nil && !errors.Is(err, context.Canceled) {
				o.logger.Debug().Err(err).Msg("reconcile failed")
			}
		}
	}
}

func (o *Orchestrator) refresh(ctx context.Context) error {
	ref := o.Active()
	msgs, err := o.history.History(ctx, ref, o.cfg.HistoryLimit)
	if err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			o.onAuthExpired(err)
		}
		return err
	}
	o.store.Reconcile(ref, msgs)
	return nil
}
