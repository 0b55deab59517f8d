package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/escalation"
	"github.com/noah-isme/contravention-api/internal/fiscal"
	"github.com/noah-isme/contravention-api/internal/repository"
	"github.com/noah-isme/contravention-api/internal/service"
	"github.com/noah-isme/contravention-api/migrations"
	"github.com/noah-isme/contravention-api/pkg/database"
)

func migrateCommand(rt *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			scripts, err := migrations.Scripts()
			if err != nil {
				return err
			}
			db, err := database.NewPostgres(rt.cfg.Database)
			if err != nil {
				return fmt.Errorf("connect database: %w", err)
			}
			defer db.Close() //nolint:errcheck

			applied, err := database.Migrate(cmd.Context(), db, scripts)
			for _, name := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", name)
			}
			return err
		},
	}
}

func recalculateCommand(rt *app) *cobra.Command {
	return &cobra.Command{
		Use:   "recalculate",
		Short: "Rebuild every ledger total and escalation record from point history",
		Long: `Recalculate treats each employee's point history as the source of truth. Drifted totals
are repaired, missing escalation records are opened and stale ones archived. Running it
twice in a row changes nothing the second time.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			l, err := rt.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			result, err := l.escalations.RecalculateAll(cmd.Context(), cliActor)
			if err != nil {
				return err
			}
			rt.logger.Info("recalculation finished",
				zap.Int("employees", result.Employees),
				zap.Int("updated", result.Updated),
				zap.Int("errors", len(result.Errors)),
			)
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func fiscalResetCommand(rt *app) *cobra.Command {
	var at string

	cmd := &cobra.Command{
		Use:   "fiscal-reset",
		Short: "Zero point totals accrued before the current fiscal year",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now()
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at must be RFC3339: %w", err)
				}
				now = parsed
			}

			calendar, err := fiscal.NewCalendar(rt.cfg.Fiscal)
			if err != nil {
				return err
			}
			l, err := rt.openLedger()
			if err != nil {
				return err
			}
			defer l.Close()

			resets := service.NewFiscalResetService(l.points, repository.NewFiscalResetRepository(l.db), calendar, l.audit, nil, rt.cfg.Points.RecalcConcurrency, rt.logger)
			result, err := resets.ResetAtFiscalBoundary(cmd.Context(), now, cliActor)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "Evaluate the fiscal year at this RFC3339 instant instead of now")
	return cmd
}

func evaluateCommand(rt *app) *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "evaluate <points>",
		Short: "Show the escalation tier and actions for a point total",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			points, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("points must be an integer: %w", err)
			}
			cfg := rt.cfg.Escalation
			if profile != "" {
				cfg.Profile = profile
			}
			matrix, err := escalation.Load(cfg)
			if err != nil {
				return err
			}

			result := matrix.Evaluate(points)
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"profile": matrix.Profile(),
				"points":  points,
				"tier":    result.TierName(),
				"level":   result.Level(),
				"actions": result.Actions,
			})
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Override ESCALATION_PROFILE")
	return cmd
}

func checkConfigCommand(rt *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "Validate configuration and print the effective escalation matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			matrix, err := escalation.Load(rt.cfg.Escalation)
			if err != nil {
				return err
			}
			calendar, err := fiscal.NewCalendar(rt.cfg.Fiscal)
			if err != nil {
				return err
			}
			start, end := calendar.Period(time.Now())
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"env":           rt.cfg.Env,
				"profile":       matrix.Profile(),
				"tiers":         matrix.Tiers(),
				"points_floor":  rt.cfg.Points.FloorEnabled,
				"due_days":      rt.cfg.Escalation.DueDays,
				"fiscal_start":  start.Format(time.RFC3339),
				"fiscal_end":    end.Format(time.RFC3339),
				"redis":         rt.cfg.Redis.Enabled,
				"notifications": rt.cfg.Notifications.Enabled,
			})
		},
	}
}
