// Package main contains the entrypoint for ROFLBot, the AI chat companion.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/roflfaucet/roflchat/internal/bot"
	"github.com/roflfaucet/roflchat/internal/chat"
	"github.com/roflfaucet/roflchat/internal/config"
	"github.com/roflfaucet/roflchat/internal/database"
	"github.com/roflfaucet/roflchat/internal/gemini"
	"github.com/roflfaucet/roflchat/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all components, handles graceful shutdown, and
// returns an exit code. ROFLBot runs without Gemini when no API key is
// configured; canned replies take over.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	var ai gemini.Client
	if cfg.Gemini.APIKey != "" {
		ai, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
	} else {
		log.Warn("No Gemini API key configured, using canned replies only")
	}

	client, err := chat.NewClient(chat.Options{
		BaseURL:        cfg.Chat.BaseURL,
		Username:       cfg.Chat.Username,
		UserID:         cfg.Chat.UserID,
		RequestTimeout: cfg.Chat.RequestTimeout,
		SendRate:       cfg.Chat.SendRate,
		SendBurst:      cfg.Chat.SendBurst,
	}, log)
	if err != nil {
		log.Error("Failed to create chat client", "error", err)
		return 1
	}

	agent, err := bot.NewAgent(log, client, store, cfg.Bot, cfg.Chat.Room, bot.NewROFLBotHandler(cfg.Bot.Name, ai, log))
	if err != nil {
		log.Error("Failed to create bot agent", "error", err)
		return 1
	}

	taskMap := map[string]bot.ScheduledTaskFunc{
		"cache_sweep":     bot.NewCacheSweepTask(agent, store, log),
		"sql_maintenance": bot.NewSQLMaintenanceTask(store, log),
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}
	if err := sched.Start(); err != nil {
		log.Error("Failed to start scheduler", "error", err)
		return 1
	}
	defer func() {
		if stopErr := sched.Stop(); stopErr != nil {
			log.Warn("Scheduler stop reported error", "error", stopErr)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return agent.Run(gctx)
	})
	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics.Addr, log)
		})
	}

	log.Info("Starting ROFLBot...")
	runErr := g.Wait()
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}

func serveMetrics(ctx context.Context, addr string, log *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn("Metrics server shutdown error", "error", err)
		}
	}()

	log.Info("Metrics listener starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
