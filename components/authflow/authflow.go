// Package authflow is the OTP login flow: phone number in, one-time password
// verified, and for first-time users a short profile stage before the session
// starts. Every transition is decided by the auth service, never locally.
package authflow

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/goliatone/go-advisory/pkg/form"
	"github.com/goliatone/go-advisory/pkg/remote"
	"github.com/goliatone/go-advisory/pkg/session"
	"github.com/goliatone/go-advisory/pkg/workflow"
)

// Stage names, in declared order. The profile stage is only entered when the
// service answers new_user_needs_details.
const (
	StagePhone   workflow.Stage = "phone"
	StageVerify  workflow.Stage = "verify"
	StageProfile workflow.Stage = "profile"
)

var validate = validator.New()

type Options struct {
	SendOTPPath   string
	VerifyOTPPath string
	Sessions      *session.Store
	Logger        *zap.Logger
}

type OptionFn func(*Options)

func DefaultOptions() Options {
	return Options{
		SendOTPPath:   "/auth/send-otp",
		VerifyOTPPath: "/auth/verify-otp",
	}
}

func NewOptions(fns ...OptionFn) Options {
	opts := DefaultOptions()
	for _, fn := range fns {
		if fn == nil {
			continue
		}
		fn(&opts)
	}
	if opts.SendOTPPath == "" {
		opts.SendOTPPath = "/auth/send-otp"
	}
	if opts.VerifyOTPPath == "" {
		opts.VerifyOTPPath = "/auth/verify-otp"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

func WithSendOTPPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.SendOTPPath = path
	}
}

func WithVerifyOTPPath(path string) OptionFn {
	return func(o *Options) {
		if o == nil {
			return
		}
		o.VerifyOTPPath = path
	}
}

// WithSessionStore begins a session from the completion payload as soon as
// the flow finishes.
func WithSessionStore(store *session.Store) OptionFn {
	return func(o *Options) {
		o.Sessions = store
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

// Flow drives the login stage machine.
type Flow struct {
	client  remote.Client
	opts    Options
	logger  *zap.Logger
	machine *workflow.Machine
	state   *form.State

	completed []session.User
}

// New builds a login flow against the given auth service client.
func New(client remote.Client, fns ...OptionFn) (*Flow, error) {
	if client == nil {
		return nil, errors.New("authflow: client is required")
	}
	opts := NewOptions(fns...)

	state := form.NewState(form.Model{})
	f := &Flow{
		client: client,
		opts:   opts,
		logger: opts.Logger,
		state:  state,
	}

	stages := []workflow.StageSpec{
		{Name: StagePhone, Fields: []string{"phone"}},
		{Name: StageVerify, Fields: []string{"phone", "otp"}},
		{Name: StageProfile, Fields: []string{"phone", "otp", "fullName", "district"}},
	}
	machine, err := workflow.New(stages, state, stageSubmitter{flow: f},
		workflow.WithLogger(opts.Logger),
		workflow.WithCompleteFunc(f.complete),
	)
	if err != nil {
		return nil, fmt.Errorf("authflow: build machine: %w", err)
	}
	f.machine = machine
	return f, nil
}

// Stage returns the active stage.
func (f *Flow) Stage() workflow.Stage { return f.machine.Current() }

// Status returns the flow lifecycle state.
func (f *Flow) Status() workflow.Status { return f.machine.Status() }

// Rejection returns the last rejection message, if any.
func (f *Flow) Rejection() string { return f.machine.Rejection() }

// Set records a field value; values persist across stages and retries.
func (f *Flow) Set(name, value string) {
	f.state.Set(name, strings.TrimSpace(value))
}

// Submit posts the current stage. A transport failure leaves the stage
// unchanged so it can be retried.
func (f *Flow) Submit(ctx context.Context) error {
	return f.machine.Submit(ctx)
}

// Back returns to the phone stage, superseding any in-flight submission.
func (f *Flow) Back() error {
	return f.machine.Back()
}

// User returns the signed-in user after the flow completed.
func (f *Flow) User() (session.User, bool) {
	if len(f.completed) == 0 {
		return session.User{}, false
	}
	return f.completed[0], true
}

func (f *Flow) complete(payload map[string]any) {
	user, err := session.UserFromPayload(payload)
	if err != nil {
		f.logger.Warn("authflow: completion payload rejected", zap.Error(err))
		return
	}
	f.completed = append(f.completed, user)
	if f.opts.Sessions != nil {
		if _, err := f.opts.Sessions.Begin(context.Background(), user); err != nil {
			f.logger.Warn("authflow: session begin failed", zap.Error(err))
		}
	}
}

type sendOTPRequest struct {
	Phone string `json:"phone" validate:"required,min=10"`
}

type verifyOTPRequest struct {
	Phone    string `json:"phone" validate:"required"`
	OTP      string `json:"otp" validate:"required,len=6,numeric"`
	FullName string `json:"fullName,omitempty"`
	District string `json:"district,omitempty"`
}

type verifyOTPResponse struct {
	Status string         `json:"status"`
	User   map[string]any `json:"user"`
}

type stageSubmitter struct {
	flow *Flow
}

func (s stageSubmitter) SubmitStage(ctx context.Context, stage workflow.Stage, values map[string]any) (workflow.Decision, error) {
	switch stage {
	case StagePhone:
		return s.sendOTP(ctx, values)
	case StageVerify, StageProfile:
		return s.verifyOTP(ctx, values)
	default:
		return workflow.Decision{}, fmt.Errorf("authflow: unknown stage %q", stage)
	}
}

func (s stageSubmitter) sendOTP(ctx context.Context, values map[string]any) (workflow.Decision, error) {
	req := sendOTPRequest{Phone: stringAt(values, "phone")}
	if err := validate.Struct(req); err != nil {
		return workflow.Decision{Kind: workflow.DecisionReject, Message: "Enter a valid phone number"}, nil
	}

	_, err := s.flow.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   s.flow.opts.SendOTPPath,
		Body:   req,
	})
	if err != nil {
		if message, ok := rejectionMessage(err); ok {
			return workflow.Decision{Kind: workflow.DecisionReject, Message: message}, nil
		}
		return workflow.Decision{}, err
	}
	return workflow.Decision{Kind: workflow.DecisionAdvance, Next: StageVerify}, nil
}

func (s stageSubmitter) verifyOTP(ctx context.Context, values map[string]any) (workflow.Decision, error) {
	req := verifyOTPRequest{
		Phone:    stringAt(values, "phone"),
		OTP:      stringAt(values, "otp"),
		FullName: stringAt(values, "fullName"),
		District: stringAt(values, "district"),
	}
	if err := validate.Struct(req); err != nil {
		return workflow.Decision{Kind: workflow.DecisionReject, Message: "Enter the 6-digit code"}, nil
	}

	raw, err := s.flow.client.Do(ctx, remote.Request{
		Method: http.MethodPost,
		Path:   s.flow.opts.VerifyOTPPath,
		Body:   req,
	})
	if err != nil {
		if message, ok := rejectionMessage(err); ok {
			return workflow.Decision{Kind: workflow.DecisionReject, Message: message}, nil
		}
		return workflow.Decision{}, err
	}

	var resp verifyOTPResponse
	shape := remote.Shape{Keys: []remote.Key{
		{Name: "status", Kind: remote.KindString, Required: true},
	}}
	if err := remote.DecodeInto(raw, shape, &resp); err != nil {
		return workflow.Decision{}, fmt.Errorf("authflow: decode verification: %w", err)
	}

	switch resp.Status {
	case "success":
		payload := resp.User
		if payload == nil {
			payload = map[string]any{}
		}
		if _, ok := payload["phone"]; !ok {
			payload["phone"] = req.Phone
		}
		if _, ok := payload["fullName"]; !ok && req.FullName != "" {
			payload["fullName"] = req.FullName
		}
		if _, ok := payload["district"]; !ok && req.District != "" {
			payload["district"] = req.District
		}
		return workflow.Decision{Kind: workflow.DecisionComplete, Payload: payload}, nil
	case "new_user_needs_details":
		return workflow.Decision{Kind: workflow.DecisionAdvance, Next: StageProfile}, nil
	default:
		return workflow.Decision{Kind: workflow.DecisionReject, Message: "Sign-in was not accepted"}, nil
	}
}

// rejectionMessage distinguishes a domain rejection (4xx with a message, e.g.
// an expired OTP) from a transport failure.
func rejectionMessage(err error) (string, bool) {
	if !remote.Rejected(err) {
		return "", false
	}
	netErr, _ := remote.AsNetworkError(err)
	message := netErr.Message
	if message == "" {
		message = "Sign-in was not accepted"
	}
	return message, true
}

func stringAt(values map[string]any, name string) string {
	if v, ok := values[name].(string); ok {
		return v
	}
	return ""
}
