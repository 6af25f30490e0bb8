// Command deliveroo is the process entry point: load config from the
// environment, wire up one or two workers, and run them until signaled,
// mirroring the teacher's main.go pattern of a flat main wiring concrete
// collaborators together and running them under a shared cancellation
// context (tabular/main.go's client.Sync of goroutines).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/niceyeti/deliveroo-agent/internal/client/wsclient"
	"github.com/niceyeti/deliveroo-agent/internal/config"
	"github.com/niceyeti/deliveroo-agent/internal/debugserver"
	"github.com/niceyeti/deliveroo-agent/internal/logging"
	"github.com/niceyeti/deliveroo-agent/internal/worker"
	"github.com/niceyeti/deliveroo-agent/internal/worldmap"
)

// bootstrapTimeout bounds how long we wait for each agent's own onYou
// event during the companion-id rendezvous before giving up.
const bootstrapTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("deliveroo: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logging.New(cfg.LogLevel, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, log, cfg); err != nil {
		log.Fatal().Err(err).Msg("deliveroo exited with error")
	}
}

func run(ctx context.Context, log zerolog.Logger, cfg *config.Config) error {
	workerCfg := worker.Config{
		OptionGenerationInterval: cfg.OptionGenerationInterval,
		MaxCarriedParcels:        cfg.MaxCarriedParcels,
		MaxDistanceForRandomMove: cfg.MaxDistanceForRandomMove,
		MaxRetryCommonDelivery:   cfg.MaxRetryCommonDelivery,
		PDDLEnabled:              cfg.PDDLEnabled,
		PDDLSolverPath:           cfg.PDDLSolverPath,
		PDDLProblemDir:           cfg.PDDLProblemDir,
	}

	gc1 := wsclient.New(logging.WithAgent(log, "agent-1"), cfg.Host, cfg.Token)
	w1 := worker.New(logging.WithAgent(log, "agent-1"), "", "", worldmap.RoleLeader, true, cfg.DualAgent, gc1, workerCfg)

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error { return w1.Run(ctx) })
	if cfg.DebugAddr != "" {
		srv1 := debugserver.New(logging.WithAgent(log, "agent-1"), cfg.DebugAddr, w1.Agent().Map(), w1.Agent())
		eg.Go(func() error { return srv1.Serve(ctx) })
	}

	if !cfg.DualAgent {
		return eg.Wait()
	}

	gc2 := wsclient.New(logging.WithAgent(log, "agent-2"), cfg.Host, cfg.Token2)
	w2 := worker.New(logging.WithAgent(log, "agent-2"), "", "", worldmap.RoleFollower, false, cfg.DualAgent, gc2, workerCfg)

	eg.Go(func() error { return w2.Run(ctx) })
	if cfg.DebugAddr2 != "" {
		srv2 := debugserver.New(logging.WithAgent(log, "agent-2"), cfg.DebugAddr2, w2.Agent().Map(), w2.Agent())
		eg.Go(func() error { return srv2.Serve(ctx) })
	}

	// Bootstrap rendezvous: each worker's own id is unknown until its
	// connection's first onYou event fires (both Run above and this wait
	// race concurrently), then each is told the other's id.
	eg.Go(func() error {
		bootstrapCtx, cancel := context.WithTimeout(ctx, bootstrapTimeout)
		defer cancel()

		id1, err := w1.SelfID(bootstrapCtx)
		if err != nil {
			return err
		}
		id2, err := w2.SelfID(bootstrapCtx)
		if err != nil {
			return err
		}
		w1.SetCompanionID(id2)
		w2.SetCompanionID(id1)
		log.Info().Str("agent_1", id1).Str("agent_2", id2).Msg("dual-agent rendezvous complete")
		return nil
	})

	return eg.Wait()
}
