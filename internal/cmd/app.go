package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/reflector-network/txprep/config"
	"github.com/reflector-network/txprep/internal/contract"
	"github.com/reflector-network/txprep/internal/journal"
	klog "github.com/reflector-network/txprep/internal/log"
	"github.com/reflector-network/txprep/internal/rpcclient"
	"github.com/reflector-network/txprep/internal/storage"
	"github.com/reflector-network/txprep/internal/telemetry"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// app holds everything a command needs. Close releases it.
type app struct {
	cfg      *config.Config
	client   *rpcclient.Client
	builder  *prepare.Builder
	db       *storage.BadgerDB // nil when the journal is disabled
	journal  *journal.Journal
	shutdown telemetry.Shutdown
	logger   zerolog.Logger
}

// newApp loads the configuration and wires the RPC client, the pipeline
// and, when enabled and wanted, the journal.
func newApp(ctx context.Context, withJournal bool) (*app, error) {
	cfg, err := config.Load(&flags)
	if err != nil {
		return nil, err
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Trace.Endpoint, string(cfg.Network))
	if err != nil {
		return nil, err
	}

	client := rpcclient.NewWithTimeout(cfg.RPC.URL, cfg.RPC.Timeout)
	a := &app{
		cfg:      cfg,
		client:   client,
		builder:  prepare.NewBuilder(prepare.Network{Passphrase: cfg.Passphrase, RPCURL: cfg.RPC.URL}, client),
		shutdown: shutdown,
		logger:   klog.WithComponent("cli"),
	}

	if withJournal && cfg.Journal.Enabled {
		db, err := storage.NewBadger(cfg.JournalDir())
		if err != nil {
			a.Close()
			return nil, err
		}
		a.db = db
		a.journal = journal.New(db, string(cfg.Network), cfg.Passphrase)
	}

	a.logger.Debug().
		Str("network", string(cfg.Network)).
		Str("rpc", cfg.RPC.URL).
		Bool("journal", a.journal != nil).
		Msg("Configuration loaded")
	return a, nil
}

// Close flushes traces and closes the journal.
func (a *app) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close journal")
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to flush traces")
	}
}

// contract returns a journaled client for id, or for the configured
// contract when id is empty.
func (a *app) contract(id string) (*contract.Client, error) {
	if id == "" {
		id = a.cfg.Contract.ID
	}
	if id == "" {
		return nil, errors.New("no contract: pass --contract or set contract.id")
	}
	c, err := contract.New(a.builder, id)
	if err != nil {
		return nil, err
	}
	if a.journal != nil {
		c.SetJournal(a.journal)
	}
	return c, nil
}

// account resolves the source account. A non-negative sequence skips the
// ledger lookup.
func (a *app) account(ctx context.Context, address string, sequence int64) (prepare.Account, error) {
	if address == "" {
		return prepare.Account{}, errors.New("--source is required")
	}
	if sequence >= 0 {
		return prepare.Account{ID: address, Sequence: sequence}, nil
	}
	return a.client.GetAccount(ctx, address)
}

// options returns build options from the configuration.
func (a *app) options(memo string) *prepare.BuildOptions {
	return a.cfg.Build.Options(memo, time.Now())
}
