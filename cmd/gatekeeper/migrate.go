package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	migrations "github.com/dropDatabas3/gatekeeper/migrations/postgres"

	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/store/pg"
)

func migrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations in lexical order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			store, err := pg.New(ctx, cfg.Postgres.DSN, pg.Config{MaxConns: 2})
			if err != nil {
				return err
			}
			defer store.Close()

			// por defecto las migraciones van embebidas en el binario
			var fsys fs.FS = migrations.FS
			if dir != "" {
				fsys = os.DirFS(dir)
			}
			return applyMigrations(ctx, store, fsys)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "apply .sql files from a directory instead of the embedded set")
	return cmd
}

func applyMigrations(ctx context.Context, store *pg.Store, fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	log := logger.Named("migrate")
	for _, name := range files {
		sql, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if _, err := store.Pool().Exec(ctx, string(sql)); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		log.Info("applied", zap.String("file", name))
	}
	log.Info("done", zap.Int("count", len(files)))
	return nil
}
