package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/trendpersona/internal/agent"
	"github.com/ibeckermayer/trendpersona/internal/auth"
	"github.com/ibeckermayer/trendpersona/internal/config"
	"github.com/ibeckermayer/trendpersona/internal/dashboard"
	"github.com/ibeckermayer/trendpersona/internal/logging"
	"github.com/ibeckermayer/trendpersona/internal/notifier"
	"github.com/ibeckermayer/trendpersona/internal/scheduler"
	"github.com/ibeckermayer/trendpersona/internal/store"
)

const shutdownTimeout = 20 * time.Second

func main() {
	configPath := flag.String("config", "", "config file (default is the user config dir)")
	flag.Parse()

	logger := logging.NewLogger()
	config.LoadEnv(logger)

	cfg, created, err := config.LoadOrCreateFile(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	if created {
		logger.Info("Created default config")
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	dbPath, err := cfg.DatabasePath()
	if err != nil {
		logger.WithError(err).Fatal("Failed to resolve database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		logger.WithError(err).Fatal("Failed to create data directory")
	}
	st, err := store.New(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := agent.NewBuilder(st, logger)
	comps, err := build(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize components")
	}

	sched, err := scheduler.New(cfg.Agent.Timezone, time.Duration(cfg.Agent.CycleTimeoutMinutes)*time.Minute, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create scheduler")
	}

	opts := agent.Options{
		Build:     build,
		Scheduler: sched,
		Save: func(c *config.Config) error {
			if *configPath != "" {
				return c.SaveFile(*configPath)
			}
			return c.Save()
		},
	}
	alerts, err := notifier.NewFromConfig(cfg.Email, sched.Location())
	if err != nil {
		logger.WithError(err).Warn("Failure alerts disabled")
	} else if alerts != nil {
		opts.Notifier = alerts
	}

	a := agent.New(cfg, st, comps, opts, logger)
	defer a.Close()

	if err := a.Schedule(); err != nil {
		logger.WithError(err).Fatal("Failed to schedule cycle")
	}
	sched.Start()
	if cfg.Agent.AutoStart {
		a.Start()
	}

	var srv *dashboard.Server
	if cfg.Dashboard.Enabled {
		srv, err = newDashboard(cfg, a, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create dashboard")
		}
		go func() {
			if err := srv.Listen(); err != nil {
				logger.WithError(err).Error("Dashboard stopped")
				stop()
			}
		}()
	}

	logger.WithFields(logrus.Fields{
		"cycle_minutes": cfg.Agent.CycleMinutes,
		"timezone":      cfg.Agent.Timezone,
		"provider":      cfg.LLM.Provider,
		"x_configured":  cfg.XReady(),
	}).Info("trendpersona starting...")

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("Dashboard shutdown incomplete")
		}
	}

	a.Stop()
	select {
	case <-sched.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("Timed out waiting for running cycle")
	}
}

func newDashboard(cfg *config.Config, a *agent.Agent, logger *logrus.Logger) (*dashboard.Server, error) {
	secret, err := auth.ResolveSecret(cfg.Dashboard)
	if err != nil {
		return nil, err
	}
	mgr, err := auth.NewManager(cfg.Dashboard, secret)
	if err != nil {
		return nil, err
	}
	if !mgr.LoginEnabled() {
		logger.Warn("No dashboard password configured; run `tpctl hash-password` and set dashboard.password_hash")
	}
	return dashboard.New(cfg.Dashboard, a, mgr, logger), nil
}
