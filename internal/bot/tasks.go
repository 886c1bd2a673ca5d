package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roflfaucet/roflchat/internal/config"
	"github.com/roflfaucet/roflchat/internal/database"
)

const seenRetention = 7 * 24 * time.Hour

// NewRainTask returns a task that makes Anzar rain coins over the room. The
// rain is skipped when too few users are online, so the pot is not wasted on
// an empty room. The server splits the amount among active chatters.
func NewRainTask(agent *Agent, cfg config.RainConfig, logger *slog.Logger) ScheduledTaskFunc {
	log := logger.With("component", "rain_task")
	return func(ctx context.Context) error {
		online := agent.OnlineCount()
		if online < cfg.MinChatters {
			log.Info("Skipping rain, not enough chatters online", "online", online, "min", cfg.MinChatters)
			return nil
		}

		if cfg.Announce != "" {
			if err := agent.Say(ctx, cfg.Announce); err != nil {
				log.Warn("Failed to send rain announcement", "error", err)
			}
		}
		if err := agent.Say(ctx, fmt.Sprintf("/rain %d", cfg.Amount)); err != nil {
			return fmt.Errorf("failed to send rain command: %w", err)
		}

		log.Info("Rain sent", "amount", cfg.Amount, "online", online)
		return nil
	}
}

// NewCacheSweepTask returns a task that clears the agent's expired
// suppression-window entries and prunes old seen-message rows.
func NewCacheSweepTask(agent *Agent, store database.Store, logger *slog.Logger) ScheduledTaskFunc {
	log := logger.With("component", "cache_sweep_task")
	return func(ctx context.Context) error {
		agent.SweepCaches()

		pruned, err := store.PruneSeen(ctx, time.Now().Add(-seenRetention))
		if err != nil {
			return fmt.Errorf("failed to prune seen messages: %w", err)
		}
		log.Debug("Cache sweep done", "pruned_seen", pruned)
		return nil
	}
}

// NewSQLMaintenanceTask returns a task that runs database maintenance.
func NewSQLMaintenanceTask(store database.Store, logger *slog.Logger) ScheduledTaskFunc {
	log := logger.With("component", "sql_maintenance_task")
	return func(ctx context.Context) error {
		taskCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
		defer cancel()

		if err := store.RunSQLMaintenance(taskCtx); err != nil {
			return err
		}
		log.Debug("SQL maintenance done")
		return nil
	}
}
