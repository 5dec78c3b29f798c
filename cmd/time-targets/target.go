package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/config"
	"Mansoor88-6/time-targets-agent/internal/database"
	"Mansoor88-6/time-targets-agent/internal/logger"
	"Mansoor88-6/time-targets-agent/internal/models"
	"Mansoor88-6/time-targets-agent/internal/repository"
	"Mansoor88-6/time-targets-agent/internal/targets"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTargetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage per-project time targets.",
	}

	var weekdays string
	setCmd := &cobra.Command{
		Use:   "set <project-id> <hours>",
		Short: "Create or replace the time target of a project.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			hours, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid hours %q: %w", args[1], err)
			}
			selection, err := calendar.ParseWeekdaySelection(weekdays)
			if err != nil {
				return err
			}
			target := models.TimeTarget{ProjectID: projectID, HoursTarget: hours, WorkWeekdays: selection}
			return withTargetStore(func(store *targets.Store) error {
				if err := store.Write(target); err != nil {
					return err
				}
				cmd.Printf("Set %dh on %s for project %d\n", hours, selection, projectID)
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&weekdays, "weekdays", "weekdays", `Work weekdays, e.g. "mon,tue,wed", "weekdays" or "all"`)

	deleteCmd := &cobra.Command{
		Use:   "delete <project-id>",
		Short: "Delete the time target of a project.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			return withTargetStore(func(store *targets.Store) error {
				if err := store.Delete(projectID); err != nil {
					return err
				}
				cmd.Printf("Deleted time target of project %d\n", projectID)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every time target.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTargetStore(func(store *targets.Store) error {
				printTargets(cmd.OutOrStdout(), store.All())
				return nil
			})
		},
	}

	cmd.AddCommand(setCmd, deleteCmd, listCmd)
	return cmd
}

func parseProjectID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid project id %q: %w", s, err)
	}
	return id, nil
}

// withTargetStore opens the local database and runs fn against the target store
func withTargetStore(fn func(*targets.Store) error) error {
	_, db, log, err := openDatabase()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	store, err := targets.NewStore(repository.NewTimeTargetRepository(db.DB), log.Logger)
	if err != nil {
		return err
	}
	return fn(store)
}

// openDatabase loads the environment and opens the local database
func openDatabase() (*config.Config, *database.DB, *logger.Logger, error) {
	cfg, log, err := loadEnvironment()
	if err != nil {
		return nil, nil, nil, err
	}
	db, err := database.New(cfg.StoragePath, log.Logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, db, log, nil
}

// printTargets writes targets ordered by hours, largest first
func printTargets(out io.Writer, all map[int64]models.TimeTarget) {
	if len(all) == 0 {
		fmt.Fprintln(out, "No time targets")
		return
	}
	list := make([]models.TimeTarget, 0, len(all))
	for _, t := range all {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].HoursTarget != list[j].HoursTarget {
			return list[i].HoursTarget > list[j].HoursTarget
		}
		return list[i].ProjectID < list[j].ProjectID
	})
	fmt.Fprintf(out, "%-12s %6s  %s\n", "PROJECT", "HOURS", "WEEKDAYS")
	for _, t := range list {
		fmt.Fprintf(out, "%-12d %6d  %s\n", t.ProjectID, t.HoursTarget, t.WorkWeekdays)
	}
}
