// Package bridge is the single point of concurrency control between the
// blocking UI event loop and the external chat tool. One worker goroutine
// processes commands strictly FIFO, one listener goroutine relays
// notifications, and both feed a single bounded event channel that the UI
// drains without blocking.
package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"kbchatbox/internal/domain"
	"kbchatbox/internal/infra/tracer"
)

// Config tunes the bridge.
type Config struct {
	QueueSize       int           // inbound command queue capacity (default 64)
	EventBuffer     int           // outbound event channel capacity (default 256)
	CommandTimeout  time.Duration // per-command adapter deadline (default 10s)
	ShutdownTimeout time.Duration // bound on Shutdown join (default 5s)
	Listener        ListenerConfig
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 256
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Bridge constructs workers. At most one live Handle exists per Bridge;
// Start fails while a prior worker has not fully stopped.
type Bridge struct {
	invoker domain.Invoker
	source  domain.NotificationSource
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool
}

// New creates a Bridge.
func New(invoker domain.Invoker, source domain.NotificationSource, cfg Config, logger *slog.Logger) *Bridge {
	cfg.applyDefaults()
	return &Bridge{
		invoker: invoker,
		source:  source,
		cfg:     cfg,
		logger:  logger,
	}
}

// Handle is the UI-side capability to drive the worker. All methods are safe
// to call from the UI thread: none of them block on subprocess I/O.
type Handle struct {
	bridge *Bridge
	cancel context.CancelFunc

	cmds   chan domain.Command
	events chan domain.Event
	done   chan struct{} // closed after WorkerStopped is emitted and events is closed

	closed   atomic.Bool // submissions rejected
	detached atomic.Bool // event drain disabled (after Shutdown returns)

	shutdownOnce sync.Once
	shutdownErr  error

	fatalMu sync.Mutex
	fatal   error // listener fatal error, reported via WorkerStopped
}

// Start spawns the command worker and the notification listener. It returns
// ErrWorkerRunning if the previous worker has not fully stopped — callers
// must never end up with two live workers racing over the same external
// tool.
func (b *Bridge) Start() (*Handle, error) {
	if !b.running.CompareAndSwap(false, true) {
		return nil, domain.NewSubSystemError("bridge", "Bridge.Start",
			domain.ErrWorkerRunning, "previous worker has not stopped")
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		bridge: b,
		cancel: cancel,
		cmds:   make(chan domain.Command, b.cfg.QueueSize),
		events: make(chan domain.Event, b.cfg.EventBuffer),
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go h.commandLoop(ctx, &wg)
	go h.listenerLoop(ctx, &wg)

	go func() {
		wg.Wait()
		h.fatalMu.Lock()
		fatal := h.fatal
		h.fatalMu.Unlock()
		h.emitFinal(domain.WorkerStopped(fatal))
		close(h.events)
		close(h.done)
		b.running.Store(false)
		b.logger.Info("worker stopped", "fatal", fatal != nil)
	}()

	b.logger.Info("worker started",
		"queue_size", b.cfg.QueueSize, "command_timeout", b.cfg.CommandTimeout)
	return h, nil
}

// Submit enqueues a command without blocking. It fails with ErrWorkerStopped
// once shutdown has begun and with ErrQueueFull when the bounded queue is at
// capacity — the UI surfaces that instead of the bridge growing without
// bound.
func (h *Handle) Submit(cmd domain.Command) error {
	if h.closed.Load() {
		return domain.NewSubSystemError("bridge", "Handle.Submit",
			domain.ErrWorkerStopped, string(cmd.Kind))
	}
	select {
	case h.cmds <- cmd:
		return nil
	default:
		return domain.NewSubSystemError("bridge", "Handle.Submit",
			domain.ErrQueueFull, string(cmd.Kind))
	}
}

// TryRecvEvents drains whatever events are currently available, never
// blocking. It returns nil after Shutdown has returned.
func (h *Handle) TryRecvEvents() []domain.Event {
	if h.detached.Load() {
		return nil
	}
	var out []domain.Event
	for {
		select {
		case e, ok := <-h.events:
			if !ok {
				return out
			}
			out = append(out, e)
		default:
			return out
		}
	}
}

// Shutdown signals both loops and joins them with a bounded wait. On
// timeout the worker is abandoned and ErrShutdownTimeout returned; its
// subprocesses are presumed leaked and a new worker cannot start until the
// stuck one actually exits. After Shutdown returns, Submit fails and
// TryRecvEvents yields nothing. Idempotent.
func (h *Handle) Shutdown() error {
	h.shutdownOnce.Do(func() {
		h.closed.Store(true)
		h.cancel()

		t := time.NewTimer(h.bridge.cfg.ShutdownTimeout)
		defer t.Stop()
		select {
		case <-h.done:
		case <-t.C:
			h.shutdownErr = domain.NewSubSystemError("bridge", "Handle.Shutdown",
				domain.ErrShutdownTimeout, h.bridge.cfg.ShutdownTimeout.String())
			h.bridge.logger.Error("worker did not stop in time, abandoning",
				"timeout", h.bridge.cfg.ShutdownTimeout)
		}
		h.detached.Store(true)
	})
	return h.shutdownErr
}

// Done is closed once the worker has fully stopped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// commandLoop serially processes commands in submission order; completion
// events therefore appear on the channel in that same order.
func (h *Handle) commandLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-h.cmds:
			if cmd.Kind == domain.CommandShutdown {
				h.closed.Store(true)
				h.cancel()
				return
			}
			h.runCommand(ctx, cmd)
		}
	}
}

func (h *Handle) runCommand(ctx context.Context, cmd domain.Command) {
	cctx, cancel := context.WithTimeout(ctx, h.bridge.cfg.CommandTimeout)
	defer cancel()

	sctx, span := tracer.StartSpan(cctx, "bridge.command",
		tracer.WithAttrs(
			tracer.StringAttr("command.kind", string(cmd.Kind)),
			tracer.StringAttr("command.id", cmd.ID),
		))
	out, err := h.bridge.invoker.Invoke(sctx, cmd)
	if err != nil {
		// Normalize deadline hits from invokers that surface raw context
		// errors: the UI must always see the Timeout taxonomy. SendMessage
		// timeouts are final — the message may still have been delivered, so
		// no path here ever retries.
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
			err = domain.NewSubSystemError("bridge", "Handle.runCommand",
				domain.ErrTimeout, string(cmd.Kind))
			out = domain.Outcome{Err: err}
		}
		tracer.RecordError(span, err)
	} else {
		tracer.SetOK(span)
	}
	span.End()

	if ctx.Err() != nil {
		// Worker is shutting down; the completion has no consumer.
		return
	}
	h.emit(ctx, domain.CommandCompleted(cmd, out))
}

// listenerLoop runs the notification listener. Exhausting the reconnect
// budget is fatal to the whole worker: an AdapterError event is surfaced,
// then the worker stops and WorkerStopped carries the cause.
func (h *Handle) listenerLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	l := NewListener(h.bridge.source, h.bridge.cfg.Listener, func(e domain.Event) {
		h.emit(ctx, e)
	}, h.bridge.logger)

	if err := l.Run(ctx); err != nil {
		h.fatalMu.Lock()
		h.fatal = err
		h.fatalMu.Unlock()
		h.emit(ctx, domain.AdapterFault(err))
		h.closed.Store(true)
		h.cancel()
	}
}

// emit delivers an event, giving up when the worker is canceled so a stalled
// UI cannot wedge shutdown.
func (h *Handle) emit(ctx context.Context, e domain.Event) {
	select {
	case h.events <- e:
	case <-ctx.Done():
	}
}

// emitFinal posts the terminal WorkerStopped event. The send is
// non-blocking: if the buffer is full the UI has long stopped draining and
// the event is logged instead.
func (h *Handle) emitFinal(e domain.Event) {
	select {
	case h.events <- e:
	default:
		h.bridge.logger.Warn("event buffer full, dropping terminal event")
	}
}
