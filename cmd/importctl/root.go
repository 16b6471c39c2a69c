package main

import (
	"context"
	"fmt"
	"os"

	"salesplan/internal/config"
	"salesplan/internal/db"
	"salesplan/internal/domain"
	"salesplan/internal/importer"
	"salesplan/internal/logger"
	"salesplan/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var envDir string

var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Preview and commit forecast and sales workbooks",
	Long: `importctl runs the workbook import pipeline without the HTTP server.

Preview writes the validation report as JSON; commit reads that report
(or a {"rows": [...]} document) and upserts the valid rows.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envDir, "env-dir", ".", "Directory holding the .env file")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		l, logErr := logger.New(logger.Config{Level: "debug", Format: "console"})
		if logErr == nil {
			l.Error("command failed", zap.Error(err))
			_ = l.Sync()
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

type app struct {
	cfg  *config.Config
	log  *zap.Logger
	pool *pgxpool.Pool
}

func (a *app) Close() {
	a.pool.Close()
	_ = a.log.Sync()
}

func (a *app) importer() *importer.Service {
	return importer.New(repository.New(a.pool), a.log.Named("importer"), a.cfg.ImporterOptions())
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(envDir)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &app{cfg: cfg, log: log, pool: pool}, nil
}

func parseKind(raw string) (domain.RecordKind, error) {
	kind, ok := domain.ParseRecordKind(raw)
	if !ok {
		return "", fmt.Errorf("unknown --kind %q: use forecast or sales", raw)
	}
	return kind, nil
}
