package prepare

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/stellar/go/txnbuild"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	klog "github.com/reflector-network/txprep/internal/log"
)

const tracerName = "github.com/reflector-network/txprep/pkg/prepare"

// Builder runs the preparation pipeline against one network. It holds no
// mutable state and is safe for concurrent use.
type Builder struct {
	network Network
	sim     Simulator
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewBuilder creates a pipeline bound to a network and a simulator.
func NewBuilder(network Network, sim Simulator) *Builder {
	return &Builder{
		network: network,
		sim:     sim,
		logger:  klog.WithComponent("prepare"),
		tracer:  otel.Tracer(tracerName),
	}
}

// Network returns the network configuration the builder was created with.
func (b *Builder) Network() Network {
	return b.network
}

// Build assembles, simulates and finalizes a transaction for op.
//
// On success exactly one transaction is returned: either the requested
// operation with padded resources (KindPrepared) or a footprint restoration
// transaction (KindRestore). Every failure is a *BuildError and no partial
// transaction is returned. Simulation failures are not retried.
func (b *Builder) Build(ctx context.Context, account Account, op txnbuild.Operation, opts *BuildOptions) (*Result, error) {
	ctx, span := b.tracer.Start(ctx, "prepare.Build", trace.WithAttributes(
		attribute.String("account", account.ID),
		attribute.Int64("sequence", account.Sequence),
	))
	defer span.End()

	res, err := b.build(ctx, span, account, op, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.Debug().Err(err).Str("account", account.ID).Msg("Build failed")
		return nil, err
	}
	span.SetAttributes(attribute.String("kind", string(res.Kind)))
	return res, nil
}

func (b *Builder) build(ctx context.Context, span trace.Span, account Account, op txnbuild.Operation, opts *BuildOptions) (*Result, error) {
	candidate, err := Assemble(account, op, opts)
	if err != nil {
		return nil, err
	}
	span.AddEvent("assembled")

	sim, err := b.sim.Simulate(ctx, candidate)
	if err != nil {
		return nil, simulationErr(err)
	}
	if sim == nil {
		return nil, simulationErr(errors.New("empty simulation response"))
	}
	if sim.Error != "" {
		return nil, simulationErr(errors.New(sim.Error))
	}
	span.AddEvent("simulated", trace.WithAttributes(attribute.Int64("latest_ledger", int64(sim.LatestLedger))))

	if sim.NeedsRestore() {
		b.logger.Info().
			Str("account", account.ID).
			Msg("Simulation response is restore preamble. Building restore transaction.")
		tx, fp, err := restoreTransaction(sim.RestorePreamble, account, opts)
		if err != nil {
			return nil, err
		}
		span.AddEvent("restore_built")
		return &Result{
			Kind:         KindRestore,
			Transaction:  tx,
			Raw:          fp,
			Adjusted:     fp,
			LatestLedger: sim.LatestLedger,
		}, nil
	}

	adjusted, err := Adjust(sim)
	if err != nil {
		return nil, err
	}
	span.AddEvent("adjusted")

	tx, err := Finalize(candidate, adjusted)
	if err != nil {
		return nil, err
	}
	span.AddEvent("finalized")

	if e := b.logger.Debug(); e.Enabled() {
		if b.network.Passphrase != "" {
			if hash, herr := tx.HashHex(b.network.Passphrase); herr == nil {
				e = e.Str("hash", hash)
			}
		}
		e.Str("raw", adjusted.Raw.String()).
			Str("adjusted", adjusted.Adjusted.String()).
			Msg("Transaction cost")
	}

	return &Result{
		Kind:         KindPrepared,
		Transaction:  tx,
		Raw:          adjusted.Raw,
		Adjusted:     adjusted.Adjusted,
		ReturnValue:  adjusted.ReturnValue,
		LatestLedger: sim.LatestLedger,
	}, nil
}
