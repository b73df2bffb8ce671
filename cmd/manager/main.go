// Command manager runs the Manager tier: it pulls transactions from a
// fullnode, holds a contiguous in-memory window, uploads durable batches to
// the file store, and exposes the control-plane and read-path RPCs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cuemby/txstream/internal/blobstore"
	"github.com/cuemby/txstream/internal/config"
	"github.com/cuemby/txstream/internal/dataservice"
	"github.com/cuemby/txstream/internal/fabric"
	"github.com/cuemby/txstream/internal/filestore"
	"github.com/cuemby/txstream/internal/health"
	"github.com/cuemby/txstream/internal/managercache"
	"github.com/cuemby/txstream/internal/obslog"
	"github.com/cuemby/txstream/internal/obsmetrics"
	"github.com/cuemby/txstream/internal/rpcfront"
	"github.com/cuemby/txstream/internal/uploader"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "manager",
	Short: "Manager tier: ingest, durable upload, and control plane",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "/etc/txstream/manager.yaml", "path to the manager config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "manager: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	obslog.Init(obslog.Config{Level: obslog.Level(cfg.LogLevel), JSONOutput: cfg.LogFormat == "json"})
	log := obslog.WithComponent("manager")

	store, err := blobstore.NewLocal(cfg.BlobStore.Path)
	if err != nil {
		return fmt.Errorf("manager: blob store: %w", err)
	}
	retryObserver := obsmetrics.RetryObserver{}
	codec := filestore.NewCodec(store, retryObserver)

	cache := managercache.NewWithWatermarks(0, cfg.ManagerCache.MaxSizeBytes, cfg.ManagerCache.TargetSizeBytes)
	up := uploader.New(cache, codec, cfg.ChainID, log, obsmetrics.FlushObserver{})

	fab := fabric.New(rpcfront.ManagerDialer, nil, log)
	for _, addr := range cfg.Peers.Managers {
		if err := fab.Seed(fabric.ServiceTypeGrpcManager, addr); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("failed to seed peer manager")
		}
	}

	var fullnode dataservice.FullnodeClient
	if len(cfg.Peers.Fullnodes) > 0 {
		cc, err := rpcfront.Dial(cfg.Peers.Fullnodes[0])
		if err != nil {
			return fmt.Errorf("manager: dial fullnode: %w", err)
		}
		fullnode = rpcfront.NewFullnodeClient(cc)
	}
	data := dataservice.New(cache, codec, fullnode, fab)

	manager := rpcfront.NewManagerServer(fab, data, log)
	rpcServer := rpcfront.NewServer(manager, nil, nil, log)

	healthSrv := health.NewServer()
	healthSrv.AddCheck("rpc_front", health.NewTCPChecker(cfg.RPCListenAddr))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return up.Run(gctx) })
	g.Go(func() error { return fab.Run(gctx, cfg.Peers.HeartbeatPeriod) })
	g.Go(func() error { return ingestLoop(gctx, cache, fullnode, log) })
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

// ingestLoop pulls contiguous transactions from the fullnode and feeds them
// into the cache. The fullnode gRPC streaming endpoint itself is an
// external collaborator; FullnodeClient's chunked-read shape stands in for
// it here the same way it does for the Manager's fall-forward read.
func ingestLoop(ctx context.Context, cache *managercache.Cache, fullnode dataservice.FullnodeClient, log zerolog.Logger) error {
	if fullnode == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		chunk, err := fullnode.GetTransactionsChunk(ctx, cache.EndVersion())
		if err != nil {
			log.Warn().Err(err).Msg("fullnode read failed, retrying")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		if len(chunk) == 0 {
			select {
			case <-time.After(100 * time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		cache.PutTransactions(chunk)
	}
}
