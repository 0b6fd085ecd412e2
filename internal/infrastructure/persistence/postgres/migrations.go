package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION SUPPORT
// Schema bootstrap only; full migration tooling belongs to the records app.
// ══════════════════════════════════════════════════════════════════════════════

// Migration represents a database migration.
type Migration struct {
	Version   int
	Name      string
	UpSQL     string
	DownSQL   string
	AppliedAt time.Time
	IsApplied bool
}

// Migrator handles database migrations.
type Migrator struct {
	conn       *Connection
	migrations []Migration
	tableName  string
}

// NewMigrator creates a Migrator with the built-in migration set.
func NewMigrator(conn *Connection) *Migrator {
	return &Migrator{
		conn:       conn,
		migrations: GetMigrations(),
		tableName:  "schema_migrations",
	}
}

// EnsureMigrationTable creates the migration tracking table if missing.
func (m *Migrator) EnsureMigrationTable(ctx context.Context) error {
	_, err := m.conn.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version INT PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`, m.tableName))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	return nil
}

// GetAppliedMigrations returns the applied migration versions.
func (m *Migrator) GetAppliedMigrations(ctx context.Context) (map[int]time.Time, error) {
	rows, err := m.conn.Query(ctx, fmt.Sprintf(
		`SELECT version, applied_at FROM %s ORDER BY version`, m.tableName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := make(map[int]time.Time)
	for rows.Next() {
		var version int
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMigrationFailed, err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

// Migrate applies all pending migrations in version order.
func (m *Migrator) Migrate(ctx context.Context) error {
	if err := m.EnsureMigrationTable(ctx); err != nil {
		return err
	}

	applied, err := m.GetAppliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, migration := range m.migrations {
		if _, ok := applied[migration.Version]; ok {
			continue
		}

		err := m.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, migration.UpSQL); err != nil {
				return err
			}
			_, err := tx.Exec(ctx, fmt.Sprintf(
				`INSERT INTO %s (version, name) VALUES ($1, $2)`, m.tableName),
				migration.Version, migration.Name)
			return err
		})
		if err != nil {
			return fmt.Errorf("%w: migration %d (%s): %v",
				ErrMigrationFailed, migration.Version, migration.Name, err)
		}
	}

	return nil
}

// GetMigrations returns the built-in migration set for the analytics core.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_reference_tables",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS grades (
					id UUID PRIMARY KEY,
					name TEXT NOT NULL,
					education_level TEXT NOT NULL
				);
				CREATE TABLE IF NOT EXISTS streams (
					id UUID PRIMARY KEY,
					grade_id UUID NOT NULL REFERENCES grades(id),
					name TEXT NOT NULL
				);
				CREATE TABLE IF NOT EXISTS students (
					id UUID PRIMARY KEY,
					stream_id UUID REFERENCES streams(id),
					full_name TEXT NOT NULL,
					admission_no TEXT UNIQUE
				);
				CREATE TABLE IF NOT EXISTS terms (
					id UUID PRIMARY KEY,
					name TEXT NOT NULL,
					starts_on DATE,
					ends_on DATE
				);
				CREATE TABLE IF NOT EXISTS assessment_types (
					id UUID PRIMARY KEY,
					name TEXT NOT NULL
				);
			`,
			DownSQL: `
				DROP TABLE IF EXISTS assessment_types;
				DROP TABLE IF EXISTS terms;
				DROP TABLE IF EXISTS students;
				DROP TABLE IF EXISTS streams;
				DROP TABLE IF EXISTS grades;
			`,
		},
		{
			Version: 2,
			Name:    "create_subjects",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS subjects (
					id UUID PRIMARY KEY,
					name TEXT NOT NULL,
					education_level TEXT NOT NULL,
					is_composite BOOLEAN NOT NULL DEFAULT FALSE,
					is_component BOOLEAN NOT NULL DEFAULT FALSE,
					composite_parent TEXT,
					component_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
					UNIQUE (name, education_level)
				);
				CREATE INDEX IF NOT EXISTS idx_subjects_level
					ON subjects (education_level);
				CREATE INDEX IF NOT EXISTS idx_subjects_parent
					ON subjects (composite_parent, education_level)
					WHERE composite_parent IS NOT NULL;
			`,
			DownSQL: `DROP TABLE IF EXISTS subjects;`,
		},
		{
			Version: 3,
			Name:    "create_composite_configs",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS composite_configs (
					id UUID PRIMARY KEY,
					subject_name TEXT NOT NULL,
					education_level TEXT NOT NULL,
					is_composite BOOLEAN NOT NULL DEFAULT TRUE,
					updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
					UNIQUE (subject_name, education_level)
				);
				CREATE TABLE IF NOT EXISTS composite_config_components (
					config_id UUID NOT NULL REFERENCES composite_configs(id) ON DELETE CASCADE,
					position INT NOT NULL,
					component_name TEXT NOT NULL,
					weight DOUBLE PRECISION NOT NULL,
					PRIMARY KEY (config_id, component_name)
				);
			`,
			DownSQL: `
				DROP TABLE IF EXISTS composite_config_components;
				DROP TABLE IF EXISTS composite_configs;
			`,
		},
		{
			Version: 4,
			Name:    "create_marks",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS marks (
					id UUID PRIMARY KEY,
					student_id UUID NOT NULL REFERENCES students(id),
					subject_id UUID NOT NULL REFERENCES subjects(id),
					term_id UUID NOT NULL REFERENCES terms(id),
					assessment_type_id UUID NOT NULL REFERENCES assessment_types(id),
					raw_mark DOUBLE PRECISION NOT NULL,
					max_raw_mark DOUBLE PRECISION NOT NULL,
					percentage DOUBLE PRECISION NOT NULL,
					UNIQUE (student_id, subject_id, term_id, assessment_type_id)
				);
				CREATE INDEX IF NOT EXISTS idx_marks_scope
					ON marks (term_id, assessment_type_id);
				CREATE INDEX IF NOT EXISTS idx_marks_student
					ON marks (student_id);
			`,
			DownSQL: `DROP TABLE IF EXISTS marks;`,
		},
	}
}
