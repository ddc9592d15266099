// Package twiliowhatsapp carries the questionnaire over WhatsApp through Twilio.
package twiliowhatsapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// MaxBodyLength is the longest WhatsApp body Twilio accepts, in characters.
const MaxBodyLength = 1600

const whatsappPrefix = "whatsapp:"

// Sender delivers text messages to a WhatsApp number.
type Sender interface {
	SendMessage(ctx context.Context, to string, body string) error
}

// ErrMissingCredentials is returned when the account SID, auth token or
// sender number is absent from both the options and the environment.
var ErrMissingCredentials = errors.New("twilio account SID, auth token and sender number are required")

// Opts holds the Twilio account settings. Empty fields fall back to the
// TWILIO_ACCOUNT_SID, TWILIO_AUTH_TOKEN and TWILIO_FROM_NUMBER variables.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromWhats  string
}

// Option configures a Client.
type Option func(*Opts)

func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromWhats sets the sender number, with or without the "whatsapp:" prefix.
func WithFromWhats(from string) Option {
	return func(o *Opts) { o.FromWhats = from }
}

func orEnv(value, key string) string {
	if value != "" {
		return value
	}
	return os.Getenv(key)
}

// Client sends WhatsApp messages through the Twilio Messages API.
type Client struct {
	rest *twilio.RestClient
	from string // "whatsapp:+33123456789"
}

// NewClient creates a Client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	sid := orEnv(cfg.AccountSID, "TWILIO_ACCOUNT_SID")
	token := orEnv(cfg.AuthToken, "TWILIO_AUTH_TOKEN")
	from := orEnv(cfg.FromWhats, "TWILIO_FROM_NUMBER")
	if sid == "" || token == "" || from == "" {
		slog.Warn("twiliowhatsapp.NewClient: incomplete credentials",
			"sid_set", sid != "", "token_set", token != "", "from_set", from != "")
		return nil, ErrMissingCredentials
	}

	rest := twilio.NewRestClientWithParams(twilio.ClientParams{Username: sid, Password: token})
	slog.Debug("twiliowhatsapp.NewClient: configured", "from", Address(from))
	return &Client{rest: rest, from: Address(from)}, nil
}

// Address returns number in Twilio's "whatsapp:" addressing form.
func Address(number string) string {
	if strings.HasPrefix(number, whatsappPrefix) {
		return number
	}
	return whatsappPrefix + number
}

// Number strips the "whatsapp:" prefix from a Twilio address.
func Number(address string) string {
	return strings.TrimPrefix(strings.TrimSpace(address), whatsappPrefix)
}

// SendMessage sends body to a WhatsApp number, split into several messages
// when it exceeds MaxBodyLength.
func (c *Client) SendMessage(ctx context.Context, to string, body string) error {
	parts := SplitBody(body, MaxBodyLength)
	for i, part := range parts {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(Address(to))
		params.SetFrom(c.from)
		params.SetBody(part)

		msg, err := c.rest.Api.CreateMessage(params)
		if err != nil {
			slog.Error("Client.SendMessage: Twilio rejected message", "error", err, "to", to, "part", i+1, "parts", len(parts))
			return fmt.Errorf("twilio send to %s (part %d/%d): %w", to, i+1, len(parts), err)
		}
		if msg != nil && msg.Sid != nil {
			slog.Debug("Client.SendMessage: sent", "to", to, "part", i+1, "sid", *msg.Sid)
		}
	}
	return nil
}

// SplitBody cuts body into chunks of at most limit runes, preferring to break
// on a newline or a space.
func SplitBody(body string, limit int) []string {
	if utf8.RuneCountInString(body) <= limit {
		return []string{body}
	}
	var parts []string
	rest := []rune(body)
	for len(rest) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if rest[i] == '\n' || rest[i] == ' ' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(rest[:cut]), " \n"))
		rest = []rune(strings.TrimLeft(string(rest[cut:]), " \n"))
	}
	if tail := strings.TrimRight(string(rest), " \n"); tail != "" {
		parts = append(parts, tail)
	}
	return parts
}

// MockClient records messages instead of sending them.
type MockClient struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	Err          error
}

type SentMessage struct {
	To   string
	Body string
}

func NewMockClient() *MockClient {
	return &MockClient{SentMessages: []SentMessage{}}
}

func (m *MockClient) SendMessage(ctx context.Context, to string, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.SentMessages = append(m.SentMessages, SentMessage{To: to, Body: body})
	return nil
}

// Sent returns a copy of the recorded messages.
func (m *MockClient) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.SentMessages))
	copy(out, m.SentMessages)
	return out
}
