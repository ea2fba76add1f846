package keybase

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"kbchatbox/internal/domain"
)

// maxListenLine bounds a single api-listen record.
const maxListenLine = 1024 * 1024

// Source implements domain.NotificationSource by keeping a
// `keybase chat api-listen` subprocess open and reading one JSON record per
// stdout line.
type Source struct {
	bin    string
	logger *slog.Logger
}

// NewSource creates a notification source.
func NewSource(logger *slog.Logger, opts ...Option) *Source {
	// Reuse adapter options for the binary path.
	a := &Adapter{bin: DefaultBin}
	for _, o := range opts {
		o(a)
	}
	return &Source{bin: a.bin, logger: logger}
}

// Open implements domain.NotificationSource.
func (s *Source) Open(ctx context.Context) (domain.NotificationStream, error) {
	cmd := exec.CommandContext(ctx, s.bin, "chat", "api-listen")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, domain.NewSubSystemError("listener", "Source.Open",
			domain.ErrSpawnFailure, err.Error())
	}

	if err := cmd.Start(); err != nil {
		return nil, domain.NewSubSystemError("listener", "Source.Open",
			domain.ErrSpawnFailure, err.Error())
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxListenLine)

	s.logger.Debug("notification stream opened", "pid", cmd.Process.Pid)
	return &stream{cmd: cmd, scanner: scanner, logger: s.logger}, nil
}

// stream wraps the api-listen subprocess. Close kills the process, which
// unblocks a Next pending on the stdout read.
type stream struct {
	cmd     *exec.Cmd
	scanner *bufio.Scanner
	logger  *slog.Logger
	once    sync.Once
}

// Next implements domain.NotificationStream. Malformed or non-chat records
// are skipped, not treated as stream failures; only stdout closing ends the
// stream.
func (st *stream) Next() (domain.ChatMessage, error) {
	for st.scanner.Scan() {
		line := st.scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, ok, err := parseListenLine(line)
		if err != nil {
			st.logger.Debug("skipping unparsable notification", "error", err)
			continue
		}
		if !ok {
			continue
		}
		return msg, nil
	}

	err := st.scanner.Err()
	if err == nil {
		err = io.EOF
	}
	return domain.ChatMessage{}, domain.NewSubSystemError("listener", "stream.Next",
		domain.ErrListenerDisconnected, err.Error())
}

// Close implements domain.NotificationStream. Idempotent; always reaps the
// subprocess so no zombie survives an error path.
func (st *stream) Close() error {
	st.once.Do(func() {
		if st.cmd.Process != nil {
			_ = st.cmd.Process.Kill()
		}
		_ = st.cmd.Wait()
	})
	return nil
}
