package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/chatrelay/cmd/chatrelay/cmdconfig"
	"github.com/papercomputeco/chatrelay/pkg/chat"
	"github.com/papercomputeco/chatrelay/pkg/config"
	"github.com/papercomputeco/chatrelay/pkg/logger"
	"github.com/papercomputeco/chatrelay/relay"
)

const serveLongDesc string = `Run the chat relay HTTP server.

Serves POST /api/chat as a server-sent event stream plus the history,
session and health endpoints. When --config names a file, edits to its
provider settings apply to new requests without a restart.

Examples:
  chatrelay serve
  chatrelay serve --listen :8080 --store sqlite:./chat.db
  USE_REMOTE=1 GOOGLE_API_KEY=... chatrelay serve`

const serveShortDesc string = "Run the chat relay server"

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	listen string
	store  string
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.listen, "listen", "l", "", "Address to listen on (default from config, :5173)")
	cmdconfig.AddStoreFlag(cmd, &cmder.store)

	return cmd
}

func (c *serveCommander) run(ctx context.Context, cmd *cobra.Command) error {
	cfg, err := cmdconfig.Load(cmd)
	if err != nil {
		return err
	}
	if c.listen != "" {
		cfg.ListenAddr = c.listen
	}

	log := logger.NewLogger(cfg.Debug)
	defer log.Sync()

	store, err := cmdconfig.OpenStore(ctx, cfg, c.store, log)
	if err != nil {
		return err
	}

	server := relay.New(relay.Config{
		ListenAddr:        cfg.ListenAddr,
		Options:           cfg.ProviderOptions(),
		HeartbeatInterval: relay.DefaultHeartbeatInterval,
	}, store, chat.NewDefault(cfg.NewMock(), log), log)
	defer server.Close()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
			return fmt.Errorf("relay server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down chat relay")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if path := cmdconfig.ConfigPath(cmd); path != "" {
		g.Go(func() error {
			return config.Watch(gctx, path, log, func(next *config.Config) {
				opts := next.ProviderOptions()
				server.SetOptions(opts)
				log.Info("provider options updated",
					zap.String("model", opts.ModelOrDefault()),
					zap.Bool("remote", opts.Remote()),
				)
			})
		})
	}

	return g.Wait()
}
