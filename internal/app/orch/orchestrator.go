// Package orch wires the signaling session, router, call engine and
// conversation store into one running client.
package orch

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/VoiceClient/internal/app"
	"github.com/dkeye/VoiceClient/internal/app/chat"
	"github.com/dkeye/VoiceClient/internal/core"
	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

var (
	ErrEmptyMessage = errors.New("message is empty")
	ErrRateLimited  = errors.New("sending too fast")
)

// History is the durable side of the chat backend.
type History interface {
	History(ctx context.Context, ref domain.ConversationRef, limit int) ([]domain.ChatMessage, error)
	Send(ctx context.Context, ref domain.ConversationRef, msg domain.ChatMessage) (domain.ChatMessage, error)
}

// CallEngine is what the orchestrator drives on the call side.
type CallEngine interface {
	HandleSignal(ctx context.Context, msg domain.SignalMessage)
	HandleSessionLost(err error)
	HandleReconnected(ctx context.Context)
	Close()
}

type Config struct {
	Self         domain.UserID
	Credential   string
	PollInterval time.Duration
	HistoryLimit int
	BusBuffer    int
	// SendLimit messages per SendWindow in one conversation; zero disables.
	SendLimit  int
	SendWindow time.Duration
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	if c.BusBuffer <= 0 {
		c.BusBuffer = 64
	}
	if c.SendWindow <= 0 {
		c.SendWindow = 5 * time.Second
	}
	return c
}

// Connectivity is the session state surfaced to the UI.
type Connectivity struct {
	Status      core.SessionStatus `json:"status"`
	AuthExpired bool               `json:"auth_expired"`
	// Closed is set when the server ended the session and no reconnect follows.
	Closed bool `json:"closed"`
}

type Orchestrator struct {
	cfg     Config
	session core.Session
	history History
	store   *chat.Store
	calls   CallEngine
	bus     *app.Bus
	limiter *sendLimiter
	logger  zerolog.Logger

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	active  domain.ConversationRef
	status  core.SessionStatus
	authErr error
	closed  bool

	smu        sync.Mutex
	statusSubs []func(Connectivity)

	wg conc.WaitGroup
}

func New(cfg Config, session core.Session, history History, store *chat.Store, calls CallEngine) *Orchestrator {
	cfg = cfg.withDefaults()
	return &Orchestrator{
		cfg:     cfg,
		session: session,
		history: history,
		store:   store,
		calls:   calls,
		bus:     app.NewBus(cfg.BusBuffer),
		limiter: newSendLimiter(cfg.SendLimit, cfg.SendWindow),
		logger:  log.With().Str("module", "app.orch").Logger(),
		active:  domain.Global(),
		status:  core.SessionDisconnected,
	}
}

// Start registers the session handlers, starts the consumers and the
// reconcile poller, then opens the session.
func (o *Orchestrator) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.ctx, o.cancel = ctx, cancel
	o.mu.Unlock()

	chatEvents := o.bus.Subscribe(app.TopicChat)
	callEvents := o.bus.Subscribe(app.TopicCall)

	o.session.OnMessage(func(msg domain.SignalMessage) { o.onMessage(ctx, msg) })
	o.session.OnStatus(o.onStatus)
	o.session.OnAuthExpired(o.onAuthExpired)
	o.session.OnClosed(o.onClosed)

	o.wg.Go(func() { o.consumeChat(ctx, chatEvents) })
	o.wg.Go(func() { o.consumeCalls(ctx, callEvents) })
	o.wg.Go(func() { o.poll(ctx) })

	if err := o.session.Connect(ctx, o.cfg.Self, o.cfg.Credential); err != nil {
		if errors.Is(err, domain.ErrAuthExpired) {
			return err
		}
		o.logger.Warn().Err(err).Msg("initial connect failed, retrying in background")
	}
	if err := o.refresh(ctx); err != nil {
		o.logger.Warn().Err(err).Msg("initial history load failed")
	}
	o.logger.Info().Str("user", string(o.cfg.Self)).Msg("client started")
	return nil
}

// Stop ends any call, closes the session and waits for the consumers.
// The call goes first so its hang-up still reaches the peer.
func (o *Orchestrator) Stop() {
	o.calls.Close()
	o.session.Close()
	o.mu.RLock()
	cancel := o.cancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
	o.bus.Close()
	o.wg.Wait()
	o.logger.Info().Msg("client stopped")
}

func (o *Orchestrator) Self() domain.UserID { return o.cfg.Self }

func (o *Orchestrator) Active() domain.ConversationRef {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.active
}

// SetActive switches the conversation on screen and loads its history.
func (o *Orchestrator) SetActive(ctx context.Context, ref domain.ConversationRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if ref.Kind == domain.ConversationPrivate && ref.PeerID == o.cfg.Self {
		return fmt.Errorf("%w: private conversation with self", domain.ErrBadConversation)
	}
	o.mu.Lock()
	o.active = ref
	o.mu.Unlock()
	o.logger.Info().Str("conversation", ref.Key()).Msg("active conversation")
	return o.refresh(ctx)
}

func (o *Orchestrator) Messages(ref domain.ConversationRef) []domain.ChatMessage {
	return o.store.Messages(ref)
}

// DeleteForMe hides a message of the active conversation on this client only.
func (o *Orchestrator) DeleteForMe(id domain.MessageID) bool {
	return o.store.DeleteForMe(o.Active(), id)
}

// SubscribeMessages forwards every conversation change.
func (o *Orchestrator) SubscribeMessages(fn chat.Listener) { o.store.Subscribe(fn) }

// SendText appends content optimistically to the active conversation, pushes
// it over the socket when open and then sends it durably over REST.
func (o *Orchestrator) SendText(ctx context.Context, content string) (domain.ChatMessage, error) {
	if strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, ErrEmptyMessage
	}
	ref := o.Active()
	if !o.limiter.Allow(ref) {
		return domain.ChatMessage{}, ErrRateLimited
	}
	msg := domain.ChatMessage{SenderID: o.cfg.Self, Content: content}
	switch ref.Kind {
	case domain.ConversationPrivate:
		msg.ReceiverID = ref.PeerID
	case domain.ConversationGroup:
		msg.GroupID = ref.GroupID
	}
	local := o.store.AppendLocal(ref, msg)

	if err := o.session.Send(domain.ChatSignal(local)); err != nil {
		o.logger.Debug().Err(err).Msg("socket fast path skipped")
	}

	confirmed, err := o.history.Send(ctx, ref, local)
	if err != nil {
		o.store.MarkFailed(ref, local.ID)
		if errors.Is(err, domain.ErrAuthExpired) {
			o.onAuthExpired(err)
		}
		local.Pending, local.Failed = false, true
		return local, err
	}
	if confirmed.ID == "" {
		confirmed.ID = local.ID
	}
	o.store.Confirm(ref, local.ID, confirmed)
	return confirmed, nil
}

func (o *Orchestrator) Connectivity() Connectivity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return Connectivity{Status: o.status, AuthExpired: o.authErr != nil, Closed: o.closed}
}

func (o *Orchestrator) SubscribeConnectivity(fn func(Connectivity)) {
	o.smu.Lock()
	o.statusSubs = append(o.statusSubs, fn)
	o.smu.Unlock()
}

func (o *Orchestrator) publishConnectivity() {
	c := o.Connectivity()
	o.smu.Lock()
	subs := slices.Clone(o.statusSubs)
	o.smu.Unlock()
	for _, fn := range subs {
		fn(c)
	}
}
