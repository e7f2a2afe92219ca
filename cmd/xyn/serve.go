package xyn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"xyron.node/xyn/internal/api"
	"xyron.node/xyn/internal/bridge"
	"xyron.node/xyn/internal/config"
	"xyron.node/xyn/internal/docs"
	"xyron.node/xyn/internal/index"
	"xyron.node/xyn/internal/ledger"
	"xyron.node/xyn/internal/logger"
	"xyron.node/xyn/internal/metrics"
	"xyron.node/xyn/internal/scheduler"
	"xyron.node/xyn/internal/store"
	"xyron.node/xyn/internal/types"
	"xyron.node/xyn/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node: heartbeat, ledger, authority bridge and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runNode(ctx, cfg)
	},
}

func init() {
	addNodeFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

// runNode wires every component and blocks until ctx is done or a
// component fails.
func runNode(ctx context.Context, cfg *config.Config) error {
	sink := logger.NewFileSink(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxAgeDays)
	defer sink.Close()
	log := logger.New(500, sink)

	m := metrics.New()

	files := store.New(cfg.StatePath(), cfg.BlocksPath())
	engine, err := ledger.Open(ledger.ParamsFromConfig(cfg), files, ledger.Options{
		Logger:    log.With("TOKENOMICS"),
		Listeners: []ledger.Listener{m},
	})
	if err != nil {
		log.Errorf("Failed to start: %v | %s", err, types.StatusFault)
		return fmt.Errorf("open ledger: %w", err)
	}
	m.SetState(engine.State())

	idx, err := index.NewStore(cfg.IndexPath(), log.With("INDEX"))
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer idx.Close()
	if _, err := idx.CatchUp(ctx, files, engine.State().Height); err != nil {
		log.Warningf("Index catch-up incomplete: %v", err)
	}
	engine.AddListener(idx)

	authority := bridge.New(bridge.Config{
		Network:       cfg.AuthorityNetwork,
		Address:       cfg.AuthoritySocket,
		Timeout:       cfg.RequestTimeout(),
		HealthTimeout: cfg.HealthTimeout(),
		Prefix:        cfg.SignaturePrefix,
	}, bridge.WithLogger(log.With("BRIDGE")), bridge.WithObserver(m))

	hbLog := log.With("HEARTBEAT")
	heartbeat := scheduler.New(cfg.BlockInterval(), mintOnTick(ctx, engine, hbLog), scheduler.WithLogger(hbLog))

	svc := api.NewService(engine, authority, heartbeat, idx, m, log.With("API"), api.Options{
		MinWalletLen:       cfg.MinWalletLen,
		MaxMessageLen:      cfg.MaxMessageLen,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	server := web.NewServer(cfg.Port, web.Deps{
		API:     svc,
		Docs:    docs.NewService(cfg.DocsDir),
		Stats:   engine,
		Logger:  log,
		Metrics: m.Handler(),
	})
	engine.AddListener(server.Hub())

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("port %d unavailable: %w", cfg.Port, err)
	}

	authorityUp := authority.HealthCheck(ctx)
	status := types.StatusIdle
	if authorityUp {
		status = types.StatusActive
	}
	log.Infof("Listening on port %d | authority %s %s reachable: %t | Status: %s",
		cfg.Port, cfg.AuthorityNetwork, cfg.AuthoritySocket, authorityUp, status)

	if err := heartbeat.Start(); err != nil {
		ln.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Serve(ln)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("Shutting down... | %s", types.StatusActive)
		// Returns after an in-flight mint, so no listener runs once the
		// deferred closes start.
		heartbeat.Stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

type minter interface {
	MintBlock(ctx context.Context) (types.Block, error)
}

// mintOnTick mints one block per heartbeat tick. A failed mint leaves the
// interval's activity in the ledger for the next tick.
func mintOnTick(ctx context.Context, engine minter, l *logger.Logger) scheduler.Handler {
	return func(t scheduler.Tick) {
		if _, err := engine.MintBlock(ctx); err != nil {
			l.Errorf("Cycle #%d failed, activity kept for next cycle: %v", t.Ordinal, err)
		}
	}
}
