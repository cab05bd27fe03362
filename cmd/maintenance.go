package cmd

import (
	"time"

	"github.com/google/uuid"
	"github.com/greenbudget/backend/internal/bulk"
	"github.com/greenbudget/backend/internal/cache"
	"github.com/greenbudget/backend/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rekeyBudget string

var rekeyCmd = &cobra.Command{
	Use:   "rekey",
	Short: "Redistribute the order keys of all rows",
	Long: `Redistributes the order keys of every table evenly. The order of the
rows does not change. Use --budget to only rekey a single budget.`,
	Args: cobra.NoArgs,
	RunE: runRekey,
}

var pruneGroupsCmd = &cobra.Command{
	Use:   "prune-groups",
	Short: "Delete groups that have been empty for too long",
	Args:  cobra.NoArgs,
	RunE:  runPruneGroups,
}

func init() {
	rekeyCmd.Flags().StringVar(&rekeyBudget, "budget", "", "ID of the budget to rekey")
}

func runRekey(cmd *cobra.Command, args []string) error {
	if err := connect(cfg); err != nil {
		return err
	}
	defer disconnect()

	// Cached read models contain order keys, so the cache of the server
	// must be invalidated as well
	backend, err := cache.New(cfg.Cache.Backend, cfg.Cache.RedisAddr, cfg.Cache.BadgerPath)
	if err != nil {
		return err
	}
	defer backend.Close()

	coordinator := bulk.New(models.DB, cache.NewStore(backend, cfg.Cache.TTL))

	var rows int
	if rekeyBudget != "" {
		id, err := uuid.Parse(rekeyBudget)
		if err != nil {
			return err
		}
		rows, err = coordinator.RekeyBudget(cmd.Context(), id)
		if err != nil {
			return err
		}
	} else {
		rows, err = coordinator.Rekey(cmd.Context())
		if err != nil {
			return err
		}
	}

	log.Info().Int("rows", rows).Msg("rekeyed rows")
	return nil
}

func runPruneGroups(cmd *cobra.Command, args []string) error {
	if err := connect(cfg); err != nil {
		return err
	}
	defer disconnect()

	deleted, err := models.PruneEmptyGroups(models.DB.WithContext(cmd.Context()), time.Now(), cfg.Groups.PruneAfter)
	if err != nil {
		return err
	}

	log.Info().Int64("deleted", deleted).Msg("pruned empty groups")
	return nil
}
