package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/contravention-api/internal/escalation"
	"github.com/noah-isme/contravention-api/internal/repository"
	"github.com/noah-isme/contravention-api/internal/service"
	"github.com/noah-isme/contravention-api/pkg/config"
	"github.com/noah-isme/contravention-api/pkg/database"
	"github.com/noah-isme/contravention-api/pkg/logger"
)

const cliActor = "contraventionctl"

// app is filled by the root command before any subcommand runs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
}

func newRootCommand() *cobra.Command {
	rt := &app{}

	rootCmd := &cobra.Command{
		Use:           "contraventionctl",
		Short:         "Maintenance commands for the contravention ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logr, err := logger.New(cfg)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		rt.cfg = cfg
		rt.logger = logr
		return nil
	}

	rootCmd.AddCommand(
		migrateCommand(rt),
		recalculateCommand(rt),
		fiscalResetCommand(rt),
		evaluateCommand(rt),
		checkConfigCommand(rt),
	)
	return rootCmd
}

// ledger opens the database and wires the ledger services the commands share.
type ledger struct {
	db          *sqlx.DB
	points      *service.PointsService
	escalations *service.EscalationService
	audit       *repository.AuditRepository
}

func (rt *app) openLedger() (*ledger, error) {
	matrix, err := escalation.Load(rt.cfg.Escalation)
	if err != nil {
		return nil, err
	}
	db, err := database.NewPostgres(rt.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	audit := repository.NewAuditRepository(db)
	points := service.NewPointsService(repository.NewPointsRepository(db, rt.cfg.Database.TxRetries), matrix, rt.cfg.Points, rt.cfg.Escalation.DueDays, rt.logger)
	escalations := service.NewEscalationService(points, repository.NewEscalationRepository(db), audit, rt.logger,
		service.WithRecalculationConcurrency(rt.cfg.Points.RecalcConcurrency),
	)
	return &ledger{db: db, points: points, escalations: escalations, audit: audit}, nil
}

func (l *ledger) Close() {
	_ = l.db.Close()
}

func printJSON(w io.Writer, value interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
