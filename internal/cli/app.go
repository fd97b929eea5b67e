// Package cli implements the interactive FeedVault client: keystore unlock,
// engine startup, and a small REPL over the feed, profile, and snapshot
// operations.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dmitrijs2005/feedvault/internal/common"
	"github.com/dmitrijs2005/feedvault/internal/config"
	"github.com/dmitrijs2005/feedvault/internal/cryptox"
	"github.com/dmitrijs2005/feedvault/internal/engine"
	"github.com/dmitrijs2005/feedvault/internal/logging"
	"github.com/dmitrijs2005/feedvault/internal/remote"
)

type App struct {
	config *config.Config
	log    logging.Logger
	eng    *engine.Engine
	remote remote.Client
	gate   *cryptox.Gate
	reader *bufio.Reader
}

func NewApp(cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	gate, err := unlockGate(cfg.KeystorePath, log)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	client, err := remote.Dial(ctx, remote.Options{
		URI:         cfg.RemoteURI,
		Database:    cfg.Database,
		AccessToken: cfg.AccessToken,
		Timeout:     cfg.RequestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reach remote store: %w", err)
	}

	eng := engine.Default(engine.Deps{Remote: client, Logger: log, DataDir: cfg.DataDir})

	return &App{
		config: cfg,
		log:    log,
		eng:    eng,
		remote: client,
		gate:   gate,
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

// unlockGate loads the sealed private key, prompting for the passphrase. On
// first run (no keystore file) a fresh keypair is generated and sealed under
// the entered passphrase.
func unlockGate(path string, log logging.Logger) (*cryptox.Gate, error) {
	passphrase, err := GetPassphrase(os.Stdout)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(passphrase)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info(context.Background(), "no keystore found, generating a new keypair", "path", path)
		key, err := cryptox.GenerateKey()
		if err != nil {
			return nil, err
		}
		if err := cryptox.SaveKeystore(path, key, passphrase); err != nil {
			return nil, err
		}
		return cryptox.NewGate(key), nil
	}

	gate, err := cryptox.LoadGate(path, passphrase)
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			return nil, errors.New("wrong passphrase")
		}
		return nil, err
	}
	return gate, nil
}

func (a *App) Run(ctx context.Context) error {
	defer func() {
		_ = a.eng.Close()
		_ = a.remote.Close(ctx)
	}()

	if err := a.eng.Init(ctx, a.gate); err != nil {
		return fmt.Errorf("engine startup failed: %w", err)
	}

	fmt.Println("Welcome to FeedVault CLI (type 'help' for commands)")
	a.root(ctx)
	return nil
}
