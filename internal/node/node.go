// Package node runs the long-lived txprep preparation server: the Stellar
// RPC client, the preparation pipeline, the journal and the JSON-RPC
// front end.
package node

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/reflector-network/txprep/config"
	"github.com/reflector-network/txprep/internal/journal"
	klog "github.com/reflector-network/txprep/internal/log"
	"github.com/reflector-network/txprep/internal/rpc"
	"github.com/reflector-network/txprep/internal/rpcclient"
	"github.com/reflector-network/txprep/internal/storage"
	"github.com/reflector-network/txprep/internal/telemetry"
	"github.com/reflector-network/txprep/pkg/prepare"
)

// Node owns every long-lived component of the server.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	client  *rpcclient.Client
	builder *prepare.Builder

	db      *storage.BadgerDB // nil when the journal is disabled
	journal *journal.Journal

	rpcServer *rpc.Server
	shutdown  telemetry.Shutdown
}

// New wires a node from cfg. Nothing listens until Start.
func New(cfg *config.Config) (*Node, error) {
	cfg.DataDir = expandHome(cfg.DataDir)

	logFile := expandHome(cfg.Log.File)
	if logFile == "" {
		logsDir := cfg.LogsDir()
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("creating logs dir: %w", err)
		}
		logFile = filepath.Join(logsDir, "txprep.log")
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.WithComponent("node")

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("rpc", cfg.RPC.URL).
		Msg("Starting txprep server")

	shutdown, err := telemetry.Init(context.Background(), cfg.Trace.Endpoint, string(cfg.Network))
	if err != nil {
		return nil, err
	}

	client := rpcclient.NewWithTimeout(cfg.RPC.URL, cfg.RPC.Timeout)
	builder := prepare.NewBuilder(prepare.Network{Passphrase: cfg.Passphrase, RPCURL: cfg.RPC.URL}, client)

	n := &Node{
		cfg:      cfg,
		logger:   logger,
		client:   client,
		builder:  builder,
		shutdown: shutdown,
	}

	if cfg.Journal.Enabled {
		db, err := storage.NewBadger(cfg.JournalDir())
		if err != nil {
			n.flush()
			return nil, err
		}
		n.db = db
		n.journal = journal.New(db, string(cfg.Network), cfg.Passphrase)
		logger.Info().Str("path", cfg.JournalDir()).Msg("Journal opened")
	}

	addr := net.JoinHostPort(cfg.Serve.Addr, strconv.Itoa(cfg.Serve.Port))
	n.rpcServer = rpc.New(addr, builder, client, cfg.Serve)
	if n.journal != nil {
		n.rpcServer.SetJournal(n.journal)
	}
	n.rpcServer.SetDefaults(cfg.Contract.ID, cfg.Build)

	return n, nil
}

// Start optionally checks the Stellar RPC node, then starts serving.
func (n *Node) Start(ctx context.Context, checkRPC bool) error {
	if checkRPC {
		status, err := CheckRPC(ctx, n.client, n.cfg)
		if err != nil {
			return fmt.Errorf("stellar rpc check: %w", err)
		}
		n.logger.Info().
			Str("version", status.Version).
			Int("protocol", status.ProtocolVersion).
			Uint32("ledger", status.LatestLedger).
			Msg("Stellar RPC node ready")
	}

	if err := n.rpcServer.Start(); err != nil {
		return err
	}

	n.logger.Info().
		Str("addr", n.rpcServer.Addr()).
		Bool("journal", n.journal != nil).
		Str("contract", n.cfg.Contract.ID).
		Msg("Preparation server started")
	return nil
}

// Stop shuts the server down and releases the journal.
func (n *Node) Stop() {
	if n.rpcServer != nil {
		if err := n.rpcServer.Stop(); err != nil {
			n.logger.Warn().Err(err).Msg("RPC server shutdown")
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			n.logger.Warn().Err(err).Msg("Journal close")
		}
	}
	n.flush()

	n.logger.Info().Msg("Goodbye!")
}

func (n *Node) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.shutdown(ctx); err != nil {
		n.logger.Warn().Err(err).Msg("Trace flush")
	}
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Journal returns the journal, or nil when disabled.
func (n *Node) Journal() *journal.Journal {
	return n.journal
}
