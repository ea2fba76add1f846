package keybase

import (
	"context"
	"os"
	"os/exec"

	"kbchatbox/internal/domain"
)

// Login runs `keybase login` with inherited stdio so the CLI can prompt
// interactively. Intended for first-run setup before the bridge starts.
func (a *Adapter) Login(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, a.bin, "login")
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return domain.NewSubSystemError("adapter", "Adapter.Login",
			domain.ErrLoginFailed, err.Error())
	}
	return nil
}

// Oneshot establishes a headless device session from a paper key, for
// running without an interactive login. The paper key is passed through the
// environment, never argv, so it does not appear in the process table.
func (a *Adapter) Oneshot(ctx context.Context, username, paperKey string) error {
	cmd := exec.CommandContext(ctx, a.bin, "oneshot", "--username", username)
	cmd.Env = append(os.Environ(), "KEYBASE_PAPERKEY="+paperKey)

	if out, err := cmd.CombinedOutput(); err != nil {
		return domain.NewSubSystemError("adapter", "Adapter.Oneshot",
			domain.ErrLoginFailed, string(out))
	}
	return nil
}
