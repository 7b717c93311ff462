// Package agribot is the advisory chat: a transcript of user and bot turns
// over a single /chat endpoint. The transcript survives network failures; a
// failed send is recorded as an error turn and the user message stays.
package agribot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/remote"
)

// Role tags a transcript turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleBot   Role = "bot"
	RoleError Role = "error"
)

// Turn is one transcript entry.
type Turn struct {
	Role Role
	Text string
	At   time.Time
}

var validate = validator.New()

type Options struct {
	ChatPath string
	Policy   *bluemonday.Policy
	Logger   *zap.Logger
	Clock    func() time.Time
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{ChatPath: "/chat"}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.ChatPath == "" {
		opts.ChatPath = "/chat"
	}
	if opts.Policy == nil {
		opts.Policy = bluemonday.UGCPolicy()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return opts
}

func WithChatPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.ChatPath = path
	}
}

func WithPolicy(policy *bluemonday.Policy) OptionFn {
	return func(o *Options) {
		if o == nil || policy == nil {
			return
		}
		o.Policy = policy
	}
}

func WithLogger(logger *zap.Logger) OptionFn {
	return func(o *Options) {
		if o == nil || logger == nil {
			return
		}
		o.Logger = logger
	}
}

// WithClock overrides the turn timestamp source. Intended for tests.
func WithClock(clock func() time.Time) OptionFn {
	return func(o *Options) {
		if o == nil || clock == nil {
			return
		}
		o.Clock = clock
	}
}

// Bot owns one chat transcript.
type Bot struct {
	client remote.Client
	opts   Options
	logger *zap.Logger

	mu    sync.Mutex
	turns []Turn
}

// New builds a chat bot against the given backend client.
func New(client remote.Client, fns ...OptionFn) (*Bot, error) {
	if client == nil {
		return nil, errors.New("agribot: client is required")
	}
	opts := NewOptions(fns...)
	return &Bot{client: client, opts: opts, logger: opts.Logger}, nil
}

type chatRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Send appends the user message to the transcript and asks the bot for a
// reply. On failure the transcript keeps the user turn and gains an error
// turn; the returned error carries the cause.
func (b *Bot) Send(ctx context.Context, message string) (string, error) {
	message = strings.TrimSpace(message)
	req := chatRequest{Message: message}
	if err := validate.Struct(req); err != nil {
		return "", fmt.Errorf("agribot: message: %w", err)
	}

	b.append(Turn{Role: RoleUser, Text: message, At: b.opts.Clock()})

	raw, err := b.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   b.opts.ChatPath,
		Body:   req,
	})
	if err != nil {
		b.logger.Warn("agribot: send failed", zap.Error(err))
		b.append(Turn{Role: RoleError, Text: "The advisor is unreachable right now. Try again.", At: b.opts.Clock()})
		return "", fmt.Errorf("agribot: send: %w", err)
	}

	var resp chatResponse
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "reply", Kind: remote.KindString, Required: true},
	}}
	if err := remote.DecodeInto(raw, shape, &resp); err != nil {
		b.append(Turn{Role: RoleError, Text: "The advisor sent an unreadable reply.", At: b.opts.Clock()})
		return "", fmt.Errorf("agribot: decode reply: %w", err)
	}

	reply := strings.TrimSpace(b.opts.Policy.Sanitize(resp.Reply))
	b.append(Turn{Role: RoleBot, Text: reply, At: b.opts.Clock()})
	return reply, nil
}

// Transcript returns a copy of all turns in order.
func (b *Bot) Transcript() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Turn(nil), b.turns...)
}

// Reset clears the transcript.
func (b *Bot) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = nil
}

func (b *Bot) append(turn Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.turns = append(b.turns, turn)
}
