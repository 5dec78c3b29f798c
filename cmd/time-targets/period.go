package main

import (
	"fmt"
	"time"

	"Mansoor88-6/time-targets-agent/internal/calendar"
	"Mansoor88-6/time-targets-agent/internal/period"
	"Mansoor88-6/time-targets-agent/internal/repository"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newPeriodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "period",
		Short: "Show or change the goal period.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPreferenceStore(func(store *period.PreferenceStore, cal calendar.Calendar) error {
				pref, err := store.Load()
				if err != nil {
					return err
				}
				current := period.MonthlyPreference()
				if pref != nil {
					current = *pref
				}
				twoPart, ok := period.Resolve(current, cal, time.Now())
				if !ok {
					return fmt.Errorf("failed to resolve the %s period", current)
				}
				cmd.Printf("Periodicity: %s\n", current)
				cmd.Printf("Current period: %s\n", twoPart.Scope)
				return nil
			})
		},
	}

	monthlyCmd := &cobra.Command{
		Use:   "monthly",
		Short: "Use calendar months as the goal period.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return savePreference(cmd, period.MonthlyPreference())
		},
	}

	var start string
	weeklyCmd := &cobra.Command{
		Use:   "weekly",
		Short: "Use weeks as the goal period.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			weekday, err := calendar.ParseWeekday(start)
			if err != nil {
				return err
			}
			return savePreference(cmd, period.WeeklyPreference(weekday))
		},
	}
	weeklyCmd.Flags().StringVar(&start, "start", "mon", "First day of the week")

	cmd.AddCommand(monthlyCmd, weeklyCmd)
	return cmd
}

func savePreference(cmd *cobra.Command, pref period.Preference) error {
	return withPreferenceStore(func(store *period.PreferenceStore, _ calendar.Calendar) error {
		if err := store.Save(pref); err != nil {
			return err
		}
		cmd.Printf("Periodicity set to %s\n", pref)
		return nil
	})
}

// withPreferenceStore opens the local database and runs fn against the preference store
func withPreferenceStore(fn func(*period.PreferenceStore, calendar.Calendar) error) error {
	cfg, db, log, err := openDatabase()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close database", zap.Error(err))
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	return fn(period.NewPreferenceStore(repository.NewSettingsRepository(db.DB)), calendar.New(loc))
}
