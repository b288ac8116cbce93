package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"userbench/internal/config"
	"userbench/internal/eventloop"
	apphttp "userbench/internal/http"
	"userbench/internal/metrics"
	"userbench/internal/service"
	"userbench/internal/stats"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the users API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, newLogger(cfg))
		},
	}

	cmd.Flags().String("mode", "", "execution model: blocking or eventloop")
	cmd.Flags().String("addr", "", "listen address")
	_ = v.BindPFlag("server.mode", cmd.Flags().Lookup("mode"))
	_ = v.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	bindDatabaseFlags(cmd, v)

	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	if cfg.Database.AutoMigrate {
		if err := st.users.Init(ctx); err != nil {
			return err
		}
	}

	reg := metrics.New(cfg.Server.Mode)
	if st.db != nil {
		reg.WatchSQL(st.db, cfg.Database.Driver)
	}
	if st.pool != nil {
		reg.WatchPGX(st.pool)
	}

	reporter := stats.NewReporter(logger)
	reporter.Add("db", st.stats)

	opts := service.Options{MaxPageSize: cfg.Server.MaxPageSize}
	var users service.UserService
	switch cfg.Server.Mode {
	case config.ModeEventLoop:
		loop := eventloop.New(eventloop.Config{
			Workers:   cfg.EventLoop.Workers,
			QueueSize: cfg.EventLoop.QueueSize,
			Logger:    logger,
		})
		loop.Start()
		defer loop.Close()

		reg.WatchLoop(loop)
		reporter.Add("loop", func() logrus.Fields {
			s := loop.Stats()
			return logrus.Fields{"pending": s.Pending, "workers": s.Workers, "rejected": s.Rejected}
		})
		users = service.NewEventLoopUserService(loop, st.users, opts)
	default:
		users = service.NewUserService(st.users, opts)
	}

	if err := reporter.Start(cfg.Stats.Schedule); err != nil {
		return err
	}
	defer reporter.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), reg.Middleware())
	router.GET("/actuator/prometheus", gin.WrapH(reg.Handler()))
	apphttp.NewHandler(users, st.users, cfg.Server.Mode, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s (mode %s, driver %s)", cfg.Server.Addr, cfg.Server.Mode, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
	return nil
}
