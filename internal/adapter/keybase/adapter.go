// Package keybase drives the locally installed Keybase CLI: one-shot
// `keybase chat api` invocations for commands and a persistent
// `keybase chat api-listen` subprocess for new-message notifications.
package keybase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"kbchatbox/internal/domain"
)

// Default adapter settings.
const (
	DefaultBin        = "keybase"
	defaultSpawnRate  = 5 // subprocess spawns per second
	defaultSpawnBurst = 10
	defaultCBFailures = 5
	defaultCBTimeout  = 30 * time.Second
	defaultCBInterval = 60 * time.Second
	maxResponseBytes  = 4 * 1024 * 1024
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithBin overrides the Keybase binary path.
func WithBin(bin string) Option {
	return func(a *Adapter) { a.bin = bin }
}

// WithSpawnLimit overrides the subprocess spawn rate limit.
func WithSpawnLimit(perSecond float64, burst int) Option {
	return func(a *Adapter) { a.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// Adapter implements domain.Invoker over one-shot `keybase chat api` calls.
// Each invocation spawns a short-lived subprocess, writes the request as a
// single JSON document via -m, and reads the JSON response from stdout. A
// circuit breaker rejects calls without spawning when the CLI fails
// repeatedly, and a rate limiter caps spawn frequency.
type Adapter struct {
	bin     string
	logger  *slog.Logger
	breaker *gobreaker.CircuitBreaker[[]byte]
	limiter *rate.Limiter
}

// New creates an Adapter.
func New(logger *slog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		bin:     DefaultBin,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(defaultSpawnRate), defaultSpawnBurst),
	}
	for _, o := range opts {
		o(a)
	}
	a.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "keybase:api",
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    defaultCBInterval,
		Timeout:     defaultCBTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= defaultCBFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			// Protocol errors count against the CLI; a caller-side timeout
			// does too, since a wedged CLI should open the circuit.
			return err == nil
		},
	})
	return a
}

// Invoke implements domain.Invoker. The returned error is also recorded in
// Outcome.Err so callers can forward the outcome without re-wrapping.
func (a *Adapter) Invoke(ctx context.Context, cmd domain.Command) (domain.Outcome, error) {
	var req apiRequest
	switch cmd.Kind {
	case domain.CommandListConversations:
		req = listRequest()
	case domain.CommandFetchHistory:
		req = readRequest(cmd.ConversationID, cmd.Cursor, cmd.Limit)
	case domain.CommandSendMessage:
		req = sendRequest(cmd.ConversationID, cmd.Body)
	default:
		err := domain.NewSubSystemError("adapter", "Adapter.Invoke",
			domain.ErrProtocol, "unsupported command kind "+string(cmd.Kind))
		return domain.Outcome{Err: err}, err
	}

	raw, err := a.call(ctx, req)
	if err != nil {
		a.logger.Warn("api call failed",
			"command_id", cmd.ID, "kind", string(cmd.Kind),
			"code", string(domain.ErrorCodeOf(err)), "error", err)
		return domain.Outcome{Err: err}, err
	}

	res, err := decodeResponse(raw)
	if err != nil {
		return domain.Outcome{Err: err}, err
	}

	var out domain.Outcome
	switch cmd.Kind {
	case domain.CommandListConversations:
		out.Conversations, err = parseConversations(res)
	case domain.CommandFetchHistory:
		out.Messages, out.NextCursor, err = parseMessages(res)
	case domain.CommandSendMessage:
		out.Sent, err = parseSendAck(res, cmd)
	}
	out.Err = err
	return out, err
}

// call runs one `keybase chat api -m <json>` subprocess through the rate
// limiter and circuit breaker.
func (a *Adapter) call(ctx context.Context, req apiRequest) ([]byte, error) {
	payload, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return nil, classifyExec(ctx, err, "")
	}

	raw, err := a.breaker.Execute(func() ([]byte, error) {
		return a.runAPI(ctx, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, domain.NewSubSystemError("adapter", "Adapter.call",
			domain.ErrUnavailable, "circuit open")
	}
	return raw, err
}

func encodeRequest(req apiRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, domain.NewSubSystemError("adapter", "encodeRequest",
			domain.ErrProtocol, err.Error())
	}
	return payload, nil
}

// runAPI spawns the subprocess and waits for it. CommandContext kills the
// process when ctx expires and Run always reaps it, so no path leaks a
// zombie.
func (a *Adapter) runAPI(ctx context.Context, payload []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, a.bin, "chat", "api", "-m", string(payload))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &limitedBuffer{buf: &stdout, max: maxResponseBytes}
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, classifyExec(ctx, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

// classifyExec maps a subprocess failure onto the error taxonomy.
func classifyExec(ctx context.Context, err error, stderr string) error {
	switch {
	case ctx.Err() != nil:
		return domain.NewSubSystemError("adapter", "Adapter.call",
			domain.ErrTimeout, ctx.Err().Error())
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return domain.NewSubSystemError("adapter", "Adapter.call",
			domain.ErrSpawnFailure, err.Error())
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail := stderr
			if detail == "" {
				detail = exitErr.String()
			}
			return domain.NewSubSystemError("adapter", "Adapter.call",
				domain.ErrExitStatus, detail)
		}
		return domain.NewSubSystemError("adapter", "Adapter.call",
			domain.ErrSpawnFailure, err.Error())
	}
}

// limitedBuffer caps captured output; the CLI should never come close, and
// a runaway subprocess must not exhaust memory.
type limitedBuffer struct {
	buf *bytes.Buffer
	max int
}

func (l *limitedBuffer) Write(p []byte) (int, error) {
	orig := len(p)
	if room := l.max - l.buf.Len(); len(p) > room {
		p = p[:room]
	}
	l.buf.Write(p)
	// Report the full length so the subprocess is not killed mid-flush.
	return orig, nil
}
