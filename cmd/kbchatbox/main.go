// kbchatbox is a terminal Keybase chat client. It drives the locally
// installed Keybase CLI through a worker bridge so the UI never blocks on
// subprocess I/O.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"kbchatbox/internal/adapter/keybase"
	"kbchatbox/internal/adapter/notify"
	"kbchatbox/internal/bridge"
	"kbchatbox/internal/domain"
	"kbchatbox/internal/infra/config"
	"kbchatbox/internal/infra/logger"
	"kbchatbox/internal/infra/tracer"
	"kbchatbox/internal/scheduler"
	"kbchatbox/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "kbchatbox:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath = flag.String("config", "kbchatbox.yaml", "path to config file")
		doLogin    = flag.Bool("login", false, "run interactive keybase login and exit")
		encrypt    = flag.String("encrypt", "", "encrypt a secret for the config file and exit")
	)
	flag.Parse()

	if *encrypt != "" {
		return encryptSecret(*encrypt)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(cfg.Logger)
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := context.Background()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return err
	}
	defer shutdownTracer(ctx)

	adapter := keybase.New(log, keybase.WithBin(cfg.Keybase.Bin))

	if *doLogin {
		return adapter.Login(ctx)
	}
	if cfg.Keybase.PaperKey != "" {
		log.Info("establishing oneshot session", "username", cfg.Keybase.Username)
		if err := adapter.Oneshot(ctx, cfg.Keybase.Username, cfg.Keybase.PaperKey); err != nil {
			return err
		}
	}

	source := keybase.NewSource(log, keybase.WithBin(cfg.Keybase.Bin))

	b := bridge.New(adapter, source, bridge.Config{
		QueueSize:       cfg.Bridge.QueueSize,
		EventBuffer:     cfg.Bridge.EventBuffer,
		CommandTimeout:  config.Duration(cfg.Bridge.CommandTimeout),
		ShutdownTimeout: config.Duration(cfg.Bridge.ShutdownTimeout),
		Listener: bridge.ListenerConfig{
			InitialBackoff: config.Duration(cfg.Listener.InitialBackoff),
			MaxBackoff:     config.Duration(cfg.Listener.MaxBackoff),
			MaxRetries:     cfg.Listener.MaxRetries,
		},
	}, log)

	handle, err := b.Start()
	if err != nil {
		return err
	}

	sched := scheduler.New(handle.Submit, log)
	if cfg.Refresh.Enabled {
		if err := sched.AddRefresh(cfg.Refresh.Schedule); err != nil {
			return err
		}
		sched.Start()
	}

	notifier := notify.New(cfg.Notify.Bin, cfg.Notify.Icon, cfg.Notify.Enabled, log)

	m := tui.New(handle, notifier, cfg.Keybase.Username, log)
	final, runErr := tea.NewProgram(m, tea.WithAltScreen()).Run()

	sched.Stop()
	if err := handle.Shutdown(); err != nil {
		if errors.Is(err, domain.ErrShutdownTimeout) {
			log.Error("worker abandoned after shutdown timeout")
		}
		return err
	}

	if runErr != nil {
		return runErr
	}
	if fm, ok := final.(tui.Model); ok && fm.FatalErr() != nil {
		return fm.FatalErr()
	}
	return nil
}

// encryptSecret prints an "enc:" value for pasting into the config file.
func encryptSecret(plaintext string) error {
	passphrase := os.Getenv(config.PassphraseEnv)
	if passphrase == "" {
		return fmt.Errorf("%s must be set to encrypt secrets", config.PassphraseEnv)
	}
	enc, err := config.EncryptValue(plaintext, passphrase)
	if err != nil {
		return err
	}
	fmt.Println("enc:" + enc)
	return nil
}
