package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dskvich/brahmos-bot/pkg/database"
	"github.com/dskvich/brahmos-bot/pkg/domain"
	"github.com/dskvich/brahmos-bot/pkg/logger"
	"github.com/dskvich/brahmos-bot/pkg/premium"
	"github.com/dskvich/brahmos-bot/pkg/repository"
	"github.com/dskvich/brahmos-bot/pkg/usage"
)

func newRootCommand() *cobra.Command {
	var cfg Config

	serve := func(*cobra.Command, []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runMain(cfg)
	}

	root := &cobra.Command{
		Use:           "brahmos-bot",
		Short:         "BrahMos AI Telegram bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			loaded, err := LoadConfig()
			if err != nil {
				return err
			}
			cfg = loaded

			slog.SetDefault(logger.New(os.Stderr, cfg.LogLevel, cfg.LogNoColor))
			return nil
		},
		RunE: serve,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the bot (default)",
			Args:  cobra.NoArgs,
			RunE:  serve,
		},
		newPremiumCommand(&cfg),
		newUsageCommand(&cfg),
	)

	return root
}

func newPremiumCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "premium",
		Short: "Manage premium users",
		Long: `Manage premium users in the configured store.

Changes are merged with what a running bot wrote, and the bot picks them up
within PREMIUM_REFRESH_INTERVAL.`,
	}

	change := func(grant bool) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, args []string) error {
			userID, err := domain.ParseUserID(args[0])
			if err != nil {
				return err
			}

			st, err := openStores(c.Context(), *cfg)
			if err != nil {
				return err
			}
			defer st.close()

			var changed bool
			if grant {
				changed, err = st.premium.Add(c.Context(), userID)
			} else {
				changed, err = st.premium.Remove(c.Context(), userID)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(c.OutOrStdout(), "user %d: premium=%t changed=%t\n", userID, grant, changed)
			return nil
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "add USER_ID",
			Short: "Grant premium to a user",
			Args:  cobra.ExactArgs(1),
			RunE:  change(true),
		},
		&cobra.Command{
			Use:   "remove USER_ID",
			Short: "Revoke premium from a user",
			Args:  cobra.ExactArgs(1),
			RunE:  change(false),
		},
		&cobra.Command{
			Use:   "list",
			Short: "List premium users",
			Args:  cobra.NoArgs,
			RunE: func(c *cobra.Command, _ []string) error {
				st, err := openStores(c.Context(), *cfg)
				if err != nil {
					return err
				}
				defer st.close()

				for _, id := range st.premium.List() {
					fmt.Fprintln(c.OutOrStdout(), id)
				}
				return nil
			},
		},
	)

	return cmd
}

func newUsageCommand(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Inspect daily usage",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [USER_ID]",
		Short: "Show today's usage of one user or of everyone",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			st, err := openStores(c.Context(), *cfg)
			if err != nil {
				return err
			}
			defer st.close()

			records := st.usage.Snapshot()
			if len(args) == 1 {
				userID, err := domain.ParseUserID(args[0])
				if err != nil {
					return err
				}
				records = []domain.UsageRecord{st.usage.Peek(userID)}
			}

			w := tabwriter.NewWriter(c.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tDATE\tIMAGES\tTTS\tPREMIUM")
			for _, rec := range records {
				fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%t\n", rec.UserID, rec.Date, rec.ImagesUsed, rec.TTSUsed, st.premium.IsPremium(rec.UserID))
			}
			return w.Flush()
		},
	})

	return cmd
}

// stores are the two persisted tables plus the database behind them, if any.
type stores struct {
	premium *premium.Store
	usage   *usage.Tracker
	db      *sql.DB
}

func (s stores) close() {
	if s.db == nil {
		return
	}
	if err := s.db.Close(); err != nil {
		slog.Warn("closing database", logger.Err(err))
	}
}

type document interface {
	Load(ctx context.Context, v any) error
	Save(ctx context.Context, v any) error
}

// openStores opens the configured backend and loads both tables.
// A table that cannot be read starts empty; the bot keeps running.
func openStores(ctx context.Context, cfg Config) (stores, error) {
	loc, err := cfg.Location()
	if err != nil {
		return stores{}, err
	}

	var (
		db                     *sql.DB
		premiumDoc, usageDoc document
	)

	switch cfg.StorageDriver {
	case "sqlite":
		if db, err = database.NewSQLite(cfg.SQLitePath); err != nil {
			return stores{}, fmt.Errorf("opening sqlite: %w", err)
		}
		premiumDoc = repository.NewSQLDocument(db, database.SQLite, "premium_users")
		usageDoc = repository.NewSQLDocument(db, database.SQLite, "usage_data")
	case "postgres":
		if db, err = database.NewPostgres(cfg.PgURL); err != nil {
			return stores{}, fmt.Errorf("opening postgres: %w", err)
		}
		premiumDoc = repository.NewSQLDocument(db, database.Postgres, "premium_users")
		usageDoc = repository.NewSQLDocument(db, database.Postgres, "usage_data")
	default:
		premiumDoc = repository.NewFileDocument(cfg.PremiumUsersFile)
		usageDoc = repository.NewFileDocument(cfg.UsageDataFile)
	}

	premiumStore := premium.NewStore(premiumDoc)
	if err := premiumStore.Load(ctx); err != nil {
		slog.Warn("Premium users not loaded, starting empty", logger.Err(err))
	}

	tracker := usage.NewTracker(usageDoc, premiumStore,
		usage.WithLocation(loc),
		usage.WithLimits(usage.Limits{Images: cfg.FreeImageLimit, TTS: cfg.FreeTTSLimit}),
	)
	if err := tracker.Load(ctx); err != nil {
		slog.Warn("Usage data not loaded, starting empty", logger.Err(err))
	}

	slog.Info("Stores opened", "driver", cfg.StorageDriver, "premiumUsers", premiumStore.Count())

	return stores{premium: premiumStore, usage: tracker, db: db}, nil
}
