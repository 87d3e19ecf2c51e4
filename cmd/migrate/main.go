package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/atlaspay/fraud-risk-engine/internal/infrastructure/config"
)

const (
	migrationsTable = "schema_migrations"
	migrationsDir   = "migrations"
)

type appliedMigration struct {
	ID        string
	Filename  string
	AppliedAt time.Time
}

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, status, create")
		name   = flag.String("name", "", "Migration name (for create action)")
		steps  = flag.Int("steps", 0, "Number of migrations to run (0 = all)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	m := &migrator{db: db}
	ctx := context.Background()

	switch *action {
	case "up":
		err = m.up(ctx, *steps)
	case "down":
		err = m.down(ctx, *steps)
	case "status":
		err = m.status(ctx)
	case "create":
		if *name == "" {
			slog.Error("migration name is required for create action")
			os.Exit(1)
		}
		err = createMigration(*name)
	default:
		slog.Error("unknown action", "action", *action)
		os.Exit(1)
	}

	if err != nil {
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

type migrator struct {
	db *sql.DB
}

func (m *migrator) ensureTable(ctx context.Context) error {
	_, err := m.db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(255) PRIMARY KEY,
			filename VARCHAR(255) NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`, migrationsTable))
	return err
}

func (m *migrator) applied(ctx context.Context) (map[string]appliedMigration, error) {
	if err := m.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("ensure migrations table: %w", err)
	}

	rows, err := m.db.QueryContext(ctx,
		fmt.Sprintf("SELECT id, filename, applied_at FROM %s ORDER BY applied_at", migrationsTable))
	if err != nil {
		return nil, fmt.Errorf("query applied migrations: %w", err)
	}
	defer rows.Close()

	out := make(map[string]appliedMigration)
	for rows.Next() {
		var am appliedMigration
		if err := rows.Scan(&am.ID, &am.Filename, &am.AppliedAt); err != nil {
			return nil, fmt.Errorf("scan migration row: %w", err)
		}
		out[am.ID] = am
	}
	return out, rows.Err()
}

func (m *migrator) pending(ctx context.Context) ([]string, error) {
	done, err := m.applied(ctx)
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return nil, fmt.Errorf("list migration files: %w", err)
	}
	sort.Strings(files)

	var out []string
	for _, file := range files {
		if _, ok := done[migrationID(file)]; !ok {
			out = append(out, file)
		}
	}
	return out, nil
}

func (m *migrator) up(ctx context.Context, steps int) error {
	todo, err := m.pending(ctx)
	if err != nil {
		return err
	}
	if len(todo) == 0 {
		slog.Info("no pending migrations")
		return nil
	}
	if steps > 0 && steps < len(todo) {
		todo = todo[:steps]
	}

	for _, file := range todo {
		if err := m.apply(ctx, file); err != nil {
			return fmt.Errorf("apply %s: %w", file, err)
		}
		slog.Info("applied migration", "file", file)
	}
	slog.Info("migrations completed", "count", len(todo))
	return nil
}

func (m *migrator) down(ctx context.Context, steps int) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	if len(done) == 0 {
		slog.Info("no migrations to rollback")
		return nil
	}

	migrations := make([]appliedMigration, 0, len(done))
	for _, am := range done {
		migrations = append(migrations, am)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].AppliedAt.After(migrations[j].AppliedAt)
	})
	if steps > 0 && steps < len(migrations) {
		migrations = migrations[:steps]
	}

	for _, am := range migrations {
		_, err := m.db.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE id = $1", migrationsTable), am.ID)
		if err != nil {
			return fmt.Errorf("remove migration record %s: %w", am.ID, err)
		}
		slog.Warn("migration record removed, schema changes need manual cleanup",
			"migration", am.Filename)
	}
	return nil
}

func (m *migrator) status(ctx context.Context) error {
	done, err := m.applied(ctx)
	if err != nil {
		return err
	}
	todo, err := m.pending(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Applied migrations: %d\n", len(done))
	for _, am := range done {
		fmt.Printf("  %s (applied at %s)\n", am.Filename, am.AppliedAt.Format(time.RFC3339))
	}
	fmt.Printf("\nPending migrations: %d\n", len(todo))
	for _, file := range todo {
		fmt.Printf("  %s\n", filepath.Base(file))
	}
	return nil
}

func (m *migrator) apply(ctx context.Context, file string) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read migration file: %w", err)
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(content)); err != nil {
		return fmt.Errorf("execute migration SQL: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (id, filename) VALUES ($1, $2)", migrationsTable),
		migrationID(file), filepath.Base(file))
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return tx.Commit()
}

func createMigration(name string) error {
	if err := os.MkdirAll(migrationsDir, 0755); err != nil {
		return fmt.Errorf("create migrations directory: %w", err)
	}

	id := fmt.Sprintf("%s_%s", time.Now().Format("20060102150405"), name)
	path := filepath.Join(migrationsDir, id+".sql")
	content := fmt.Sprintf("-- Migration: %s\n-- Created at: %s\n\n", name, time.Now().Format(time.RFC3339))

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("create migration file: %w", err)
	}
	slog.Info("created migration", "file", path)
	return nil
}

func migrationID(file string) string {
	return strings.TrimSuffix(filepath.Base(file), ".sql")
}
