// Package repository is the result-oriented façade over the remote API and
// the session store. Every operation returns an outcome.Outcome and never
// panics or propagates a transport error: failures are classified as
// transport, HTTP or envelope failures and carry a message that can be shown
// to the user as-is.
package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"ereader/internal/api"
	"ereader/internal/api/client"
	"ereader/internal/auth/federated"
	"ereader/internal/platform/metrics"
	"ereader/internal/session"
	"ereader/pkg/outcome"
	"ereader/pkg/validation"

	dErrors "ereader/pkg/domain-errors"
)

// Transport executes a contract request. *client.Client satisfies it.
type Transport interface {
	Do(ctx context.Context, req client.Request) (*client.Response, error)
}

//go:generate mockgen -source=repository.go -destination=mocks/transport_mock.go -package=mocks Transport

type Repository struct {
	transport Transport
	sessions  session.Store
	provider  federated.Provider
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

type Option func(*Repository)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Repository) {
		r.metrics = m
	}
}

// WithProvider sets the federated sign-in provider. Without one, federated
// sign-in fails with a configuration error and logout skips provider
// sign-out.
func WithProvider(p federated.Provider) Option {
	return func(r *Repository) {
		r.provider = p
	}
}

// WithClock overrides the clock used for local token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

func New(transport Transport, sessions session.Store, opts ...Option) *Repository {
	r := &Repository{
		transport: transport,
		sessions:  sessions,
		provider:  federated.Disabled{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

var errMissingData = errors.New("response carries no data")

// decoder turns a 2xx body into T. env is nil for raw (non-envelope) bodies.
type decoder[T any] func(body []byte, env *api.Envelope) (T, error)

// invoke runs req and normalizes its result. fallback is the operation's
// default failure message.
func invoke[T any](ctx context.Context, r *Repository, req client.Request, fallback string, decode decoder[T]) (out outcome.Outcome[T]) {
	name := req.Endpoint.Name
	start := time.Now()
	defer func() {
		label := "success"
		if f, failed := out.Failure(); failed {
			label = string(f.Kind)
			r.logger.WarnContext(ctx, "remote call failed",
				"endpoint", name,
				"kind", f.Kind,
				"message", f.Message,
			)
		}
		r.metrics.ObserveRemoteCall(name, label, time.Since(start))
	}()

	resp, err := r.transport.Do(ctx, req)
	if err != nil {
		return outcome.FromFailure[T](classifyTransport(err))
	}
	if !resp.OK() {
		return outcome.FromFailure[T](classifyHTTP(resp.StatusCode, resp.Body, fallback))
	}

	var envPtr *api.Envelope
	if env, ok := api.DecodeEnvelope(resp.Body); ok {
		if env.Failed() {
			return outcome.FromFailure[T](envelopeFailure(env, fallback))
		}
		envPtr = &env
	}

	value, err := decode(resp.Body, envPtr)
	switch {
	case errors.Is(err, errMissingData):
		msg := fallback
		if envPtr != nil && envPtr.Message != "" {
			msg = envPtr.Message
		}
		return outcome.Fail[T](dErrors.CodeDomain, msg)
	case err != nil:
		r.logger.DebugContext(ctx, "undecodable response", "endpoint", name, "error", err)
		return outcome.Fail[T](dErrors.CodeServerError, MsgUnexpected)
	}
	return outcome.Success(value)
}

// data decodes the envelope's data field, or the whole body when the
// response is not enveloped.
func data[T any](body []byte, env *api.Envelope) (T, error) {
	var v T
	raw := body
	if env != nil {
		raw = env.Data
	}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return v, errMissingData
	}
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return v, err
	}
	return v, nil
}

func ack(_ []byte, _ *api.Envelope) (outcome.Ack, error) {
	return outcome.Ack{}, nil
}

// validated short-circuits with a Validation failure when req breaks its
// constraints, so malformed input never reaches the network.
func validated[T any](req any) (outcome.Outcome[T], bool) {
	if err := validation.Validate(req); err != nil {
		return outcome.FromError[T](err), false
	}
	return outcome.Outcome[T]{}, true
}

// Health checks that the backend is reachable.
func (r *Repository) Health(ctx context.Context) outcome.Outcome[outcome.Ack] {
	return invoke(ctx, r, client.Request{Endpoint: api.Health}, "Backend health check failed", ack)
}
