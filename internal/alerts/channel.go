package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultSlackURL is the Slack Web API base.
const DefaultSlackURL = "https://slack.com/api"

// Channel delivers rendered messages.
type Channel interface {
	Send(ctx context.Context, msg Message) error
}

type postMessageRequest struct {
	Channel     string       `json:"channel"`
	Text        string       `json:"text"`
	AsUser      bool         `json:"as_user"`
	Attachments []Attachment `json:"attachments"`
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// SlackChannel posts messages through chat.postMessage.
type SlackChannel struct {
	baseURL string
	token   string
	channel string
	client  *http.Client
	limiter *rate.Limiter
}

// SlackOption configures the Slack channel.
type SlackOption func(*SlackChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) SlackOption {
	return func(ch *SlackChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) SlackOption {
	return func(ch *SlackChannel) {
		if baseURL != "" {
			ch.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithRateLimit caps outgoing posts per second. Zero disables the limit.
func WithRateLimit(perSecond float64, burst int) SlackOption {
	return func(ch *SlackChannel) {
		if perSecond <= 0 {
			ch.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		ch.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewSlackChannel constructs a Slack channel posting to channel with token.
func NewSlackChannel(token, channel string, opts ...SlackOption) (*SlackChannel, error) {
	if token == "" {
		return nil, errors.New("slack channel: empty token")
	}
	if channel == "" {
		return nil, errors.New("slack channel: empty channel")
	}
	ch := &SlackChannel{
		baseURL: DefaultSlackURL,
		token:   token,
		channel: channel,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 3),
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch, nil
}

// Send posts one message. It is not retried.
func (s *SlackChannel) Send(ctx context.Context, msg Message) error {
	if s == nil {
		return errors.New("slack channel: nil")
	}
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("slack channel: rate limit: %w", err)
		}
	}
	attachments := msg.Attachments
	if attachments == nil {
		attachments = []Attachment{}
	}
	body, err := json.Marshal(postMessageRequest{
		Channel:     s.channel,
		Text:        msg.Text,
		AsUser:      true,
		Attachments: attachments,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat.postMessage", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack channel: non-2xx response %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return err
	}
	var decoded postMessageResponse
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil && !decoded.OK && decoded.Error != "" {
		return fmt.Errorf("slack channel: %s", decoded.Error)
	}
	return nil
}

// LogChannel writes messages to a logger. It stands in when no chat token is configured.
type LogChannel struct {
	Logger logrus.FieldLogger
}

func (l LogChannel) Send(_ context.Context, msg Message) error {
	logger := l.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	logger.WithField("attachments", len(msg.Attachments)).Info("alert: " + msg.Text)
	return nil
}

// MultiChannel sends to every channel and joins their errors.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel, skipping nil entries.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	m := &MultiChannel{}
	for _, ch := range channels {
		if ch != nil {
			m.channels = append(m.channels, ch)
		}
	}
	return m
}

func (m *MultiChannel) Send(ctx context.Context, msg Message) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, ch := range m.channels {
		if err := ch.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
