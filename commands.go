package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/database"
	"activity-reward-system/models"
	"activity-reward-system/services"
	"activity-reward-system/utils"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.Open(cfg)
			if err != nil {
				return err
			}
			if err := database.Migrate(db); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "✅ schema up to date")
			return nil
		},
	}
}

// offlineCatalog answers creature lookups without a database so bundles can be previewed.
type offlineCatalog struct{}

func (offlineCatalog) FindRandom(_ context.Context, f services.CreatureFilter) (*models.SpeciesDescriptor, error) {
	return &models.SpeciesDescriptor{
		CatalogID: f.Franchise + "-preview",
		Franchise: f.Franchise,
		Name:      "Preview " + f.Franchise,
		Types:     f.Types,
	}, nil
}

func newRollCmd() *cobra.Command {
	var (
		location, activity, difficulty, tablesPath string
		score, sessions, minutes                   int
		seed                                       uint64
	)

	cmd := &cobra.Command{
		Use:   "roll",
		Short: "Generate one reward bundle offline and print it as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := config.LoadTables(cmd.Context(), config.Config{RewardTablesPath: tablesPath}, nil)
			if err != nil {
				return err
			}

			roller := services.NewCreatureRoller(offlineCatalog{}, time.Second)
			gen := services.NewRewardGenerator(tables, roller, nil)

			src := services.NewRandomSource()
			if cmd.Flags().Changed("seed") {
				src = services.NewSource(seed)
			}
			bundle, err := gen.Generate(cmd.Context(), src, services.GenerateInput{
				Location: location,
				Activity: activity,
				Outcome: models.SessionOutcome{
					ProductivityScore: score,
					CompletedSessions: sessions,
					BundleSessions:    sessions,
					TotalFocusMinutes: minutes,
					Difficulty:        difficulty,
				},
			})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(bundle)
		},
	}
	cmd.Flags().StringVar(&location, "location", "garden", "location id")
	cmd.Flags().StringVar(&activity, "activity", "tend", "activity id")
	cmd.Flags().StringVar(&difficulty, "difficulty", "normal", "prompt difficulty: easy|normal|hard")
	cmd.Flags().StringVar(&tablesPath, "tables", "", "reward tables YAML (defaults to the built-in tables)")
	cmd.Flags().IntVar(&score, "score", 100, "productivity score")
	cmd.Flags().IntVar(&sessions, "sessions", 1, "completed sessions in the run")
	cmd.Flags().IntVar(&minutes, "minutes", 30, "total focus minutes")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "seed for a reproducible bundle")
	return cmd
}

func newTablesCmd() *cobra.Command {
	tables := &cobra.Command{Use: "tables", Short: "Inspect and publish reward tables"}

	validateCmd := &cobra.Command{
		Use:   "validate <path>",
		Short: "Check a reward tables YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := readTables(args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "✅ %s: %d locations, %d rarity tiers, %d item rows\n",
				args[0], len(t.Locations), len(t.Rarities), len(t.Items))
			return nil
		},
	}

	var key string
	publishCmd := &cobra.Command{
		Use:   "publish <path>",
		Short: "Validate a reward tables file and upload it to R2",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := readTables(args[0]); err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if key == "" {
				key = cfg.RewardTablesR2Key
			}
			if key == "" {
				return errors.New("no object key: pass --key or set REWARD_TABLES_R2_KEY")
			}
			r2, err := utils.InitR2(cmd.Context(), cfg.R2)
			if err != nil {
				return err
			}
			if err := r2.UploadObject(cmd.Context(), key, data, "application/yaml"); err != nil {
				return err
			}
			log.Printf("📦 [TABLES] Published %s to r2://%s/%s", args[0], cfg.R2.Bucket, key)
			return nil
		},
	}
	publishCmd.Flags().StringVar(&key, "key", "", "R2 object key (defaults to REWARD_TABLES_R2_KEY)")

	tables.AddCommand(validateCmd, publishCmd)
	return tables
}

func readTables(path string) (*config.RewardTables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return config.DecodeTables(data)
}
