// Command livedata runs the Live Data tier: a bounded ring-buffer cache
// tailing a Manager, fronting per-client streaming subscriptions over
// DataService and RawData.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/txstream/internal/config"
	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/health"
	"github.com/cuemby/txstream/internal/livecache"
	"github.com/cuemby/txstream/internal/obslog"
	"github.com/cuemby/txstream/internal/obsmetrics"
	"github.com/cuemby/txstream/internal/rpcfront"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "livedata",
	Short: "Live Data tier: ring cache and per-client streaming",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "/etc/txstream/livedata.yaml", "path to the live data config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "livedata: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	obslog.Init(obslog.Config{Level: obslog.Level(cfg.LogLevel), JSONOutput: cfg.LogFormat == "json"})
	log := obslog.WithComponent("livedata")

	if len(cfg.Peers.Managers) == 0 {
		return fmt.Errorf("livedata: at least one manager peer is required")
	}
	managerConn, err := rpcfront.Dial(cfg.Peers.Managers[0])
	if err != nil {
		return fmt.Errorf("livedata: dial manager: %w", err)
	}
	fetch := rpcfront.ManagerFetchFunc(managerConn)

	cache := livecache.NewWithLimits(0, cfg.LiveCache.Slots, cfg.LiveCache.ByteLimit, cfg.LiveCache.EvictionTargetBytes, fetch)

	snap, err := fabric.NewBoltSnapshotter(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("livedata: peer snapshot store: %w", err)
	}
	defer snap.Close()

	fab := fabric.New(rpcfront.DataServiceDialer, snap, log)
	if err := fab.Restore(); err != nil {
		log.Warn().Err(err).Msg("failed to restore peer snapshot")
	}
	for _, addr := range cfg.Peers.Managers {
		if err := fab.Seed(fabric.ServiceTypeGrpcManager, addr); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("failed to seed peer manager")
		}
	}

	collector := obsmetrics.NewCollector(nil, cache, fab)
	collector.Start()
	defer collector.Stop()

	live := rpcfront.NewDataServiceServer(cache, fab, log)
	raw := rpcfront.NewRawDataServer(live, nil, log)
	rpcServer := rpcfront.NewServer(nil, live, raw, log)

	healthSrv := health.NewServer()
	healthSrv.AddCheck("rpc_front", health.NewTCPChecker(cfg.RPCListenAddr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fab.Run(gctx, cfg.Peers.HeartbeatPeriod) })
	g.Go(func() error { return rpcServer.Serve(cfg.RPCListenAddr) })
	g.Go(func() error { return healthSrv.Start(cfg.HealthListenAddr) })
	g.Go(func() error {
		<-gctx.Done()
		rpcServer.GracefulStop()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return healthSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

