package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fustanlabs/fustan-sync/internal/bus"
	"github.com/fustanlabs/fustan-sync/internal/cache"
	"github.com/fustanlabs/fustan-sync/internal/client"
	"github.com/fustanlabs/fustan-sync/internal/common/cnst"
	"github.com/fustanlabs/fustan-sync/internal/common/config"
	"github.com/fustanlabs/fustan-sync/internal/guard"
	"github.com/fustanlabs/fustan-sync/internal/history"
	"github.com/fustanlabs/fustan-sync/internal/i18n"
	"github.com/fustanlabs/fustan-sync/internal/notify"
	"github.com/fustanlabs/fustan-sync/internal/realtime"
	"github.com/fustanlabs/fustan-sync/internal/session"
	"github.com/fustanlabs/fustan-sync/internal/storage"
	"github.com/fustanlabs/fustan-sync/pkg/logger"
	"github.com/fustanlabs/fustan-sync/pkg/metrics"
	"github.com/fustanlabs/fustan-sync/pkg/version"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of fustan-sync",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", cnst.AppName, version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   cnst.AppName,
		Short: "Fustan session and notification synchronizer",
		Long:  `fustan-sync keeps a local session, notification state and realtime channel in step with the Fustan marketplace backend`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "conf", "c", cnst.AppName+".yaml", "path to configuration file")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig[config.AgentConfig](configPath)
	if err != nil {
		fmt.Printf("Failed to load configuration from %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("starting fustan-sync",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(ctx, log, &cfg.Storage)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
		srv := &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler()}
		go func() {
			log.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error("metrics server error", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	api, err := client.New(cfg.API, store, log, m)
	if err != nil {
		log.Fatal("failed to initialize API client", zap.Error(err))
	}

	translator, err := i18n.New(cfg.Notifications.Language)
	if err != nil {
		log.Fatal("failed to load translations", zap.Error(err))
	}

	var hist *history.Store
	if cfg.Notifications.HistoryPath != "" {
		hist, err = history.NewStore(log, cfg.Notifications.HistoryPath)
		if err != nil {
			log.Fatal("failed to open notification history", zap.Error(err))
		}
		defer hist.Close()
	}

	cacheStore := cache.NewStore(log)
	eventBus := bus.New(log)
	nav := session.NewMemoryNavigator(log, cnst.RootPath)

	sess := session.NewManager(ctx, log, api, cacheStore, store, nav)

	rt := realtime.NewManager(log, cfg.Realtime, cacheStore, eventBus, store, m)
	go rt.Run(ctx)

	agg := notify.NewAggregator(log, api, cacheStore, eventBus,
		notify.NewLogToaster(log), translator, hist, m,
		cfg.Notifications.PollInterval)
	go agg.Run(ctx)

	g := guard.New(log, nav, guard.Options{
		RedirectOnUnauthenticated: cfg.Guard.RedirectOnUnauthenticated,
		RedirectPath:              cfg.Guard.RedirectPath,
	})
	go watchGuard(ctx, cacheStore, sess, g)

	// resolve the persisted snapshot against the server before settling in
	st := sess.Refresh(ctx)
	if st.IsAuthenticated {
		log.Info("session resolved",
			zap.Int64("user_id", st.User.ID),
			zap.String("role", st.User.Role))
	} else {
		log.Info("no active session")
	}

	<-ctx.Done()
	log.Info("shutting down")
}

// watchGuard re-evaluates the redirect guard whenever the identity settles.
func watchGuard(ctx context.Context, c *cache.Store, sess *session.Manager, g *guard.Guard) {
	changes := c.Subscribe(ctx, cnst.KeyAuthMe)
	for range changes {
		g.Evaluate(sess.State())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
