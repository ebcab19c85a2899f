// Package rest talks to the chat backend's HTTP API: conversation history
// and the durable send path.
package rest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dkeye/VoiceClient/internal/domain"
	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const messagesPath = "/api/messages"

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	http   *resty.Client
	token  string
	logger zerolog.Logger
}

func NewClient(cfg Config, token string) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	hc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)
	return &Client{
		http:   hc,
		token:  token,
		logger: log.With().Str("module", "rest").Logger(),
	}
}

type sendRequest struct {
	Content    string         `json:"content"`
	ReceiverID domain.UserID  `json:"receiver_id,omitempty"`
	GroupID    domain.GroupID `json:"group_id,omitempty"`
	ClientID   string         `json:"client_id,omitempty"`
}

type errorBody struct {
	Error string `json:"error"`
}

// History loads the newest messages of ref, oldest first.
func (c *Client) History(ctx context.Context, ref domain.ConversationRef, limit int) ([]domain.ChatMessage, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	params := map[string]string{"scope": string(ref.Kind)}
	switch ref.Kind {
	case domain.ConversationPrivate:
		params["peer_id"] = string(ref.PeerID)
	case domain.ConversationGroup:
		params["group_id"] = string(ref.GroupID)
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	var out []domain.ChatMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetQueryParams(params).
		SetResult(&out).
		SetError(&errorBody{}).
		Get(messagesPath)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", ref, err)
	}
	if err := c.check(resp, "history"); err != nil {
		return nil, err
	}
	c.logger.Debug().Str("conversation", ref.Key()).Int("count", len(out)).Msg("history loaded")
	return out, nil
}

// Send posts msg durably and returns the server's copy of it.
func (c *Client) Send(ctx context.Context, ref domain.ConversationRef, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if err := ref.Validate(); err != nil {
		return domain.ChatMessage{}, err
	}
	req := sendRequest{Content: msg.Content, ClientID: string(msg.ID)}
	switch ref.Kind {
	case domain.ConversationPrivate:
		req.ReceiverID = ref.PeerID
	case domain.ConversationGroup:
		req.GroupID = ref.GroupID
	}

	var out domain.ChatMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(c.token).
		SetBody(req).
		SetResult(&out).
		SetError(&errorBody{}).
		Post(messagesPath)
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("send to %s: %w", ref, err)
	}
	if err := c.check(resp, "send"); err != nil {
		return domain.ChatMessage{}, err
	}
	return out, nil
}

func (c *Client) check(resp *resty.Response, op string) error {
	switch code := resp.StatusCode(); {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s: %w", op, domain.ErrAuthExpired)
	case resp.IsError():
		msg := resp.Status()
		if eb, ok := resp.Error().(*errorBody); ok && eb.Error != "" {
			msg = eb.Error
		}
		return fmt.Errorf("%s: server returned %d: %s", op, code, msg)
	}
	return nil
}
