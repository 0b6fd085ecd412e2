package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/shulebook/shulebook/internal/domain/shared"
	"github.com/shulebook/shulebook/internal/domain/subject"
	"github.com/shulebook/shulebook/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT REPOSITORY
// Implements subject.Repository and subject.ConfigRepository on PostgreSQL.
// ══════════════════════════════════════════════════════════════════════════════

// SubjectRepository is the PostgreSQL implementation of the subject
// read model and the composite configuration write side.
type SubjectRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewSubjectRepository creates a new SubjectRepository.
func NewSubjectRepository(conn *Connection, log *logger.Logger) *SubjectRepository {
	return &SubjectRepository{
		conn: conn,
		log:  log.With(logger.String("component", "subject_repository")),
	}
}

const subjectColumns = `
	id, name, education_level, is_composite, is_component,
	COALESCE(composite_parent, ''), component_weight
`

func scanSubject(row pgx.Row) (*subject.Subject, error) {
	var s subject.Subject
	var weight float64
	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.EducationLevel,
		&s.IsComposite,
		&s.IsComponent,
		&s.CompositeParent,
		&weight,
	)
	if err != nil {
		return nil, err
	}
	s.ComponentWeight = shared.Weight(weight)
	return &s, nil
}

// ListByLevel returns every subject registered for the education level.
func (r *SubjectRepository) ListByLevel(ctx context.Context, level shared.EducationLevel) ([]*subject.Subject, error) {
	rows, err := r.conn.Query(ctx, fmt.Sprintf(`
		SELECT %s
		FROM subjects
		WHERE education_level = $1
		ORDER BY name
	`, subjectColumns), level.String())
	if err != nil {
		return nil, shared.WrapError("subject", "ListByLevel",
			shared.ErrPersistence, "failed to list subjects", err)
	}
	defer rows.Close()

	var subjects []*subject.Subject
	for rows.Next() {
		s, err := scanSubject(rows)
		if err != nil {
			return nil, shared.WrapError("subject", "ListByLevel",
				shared.ErrPersistence, "failed to scan subject row", err)
		}
		subjects = append(subjects, s)
	}
	return subjects, rows.Err()
}

// FindByName returns a subject by name, case-insensitively.
func (r *SubjectRepository) FindByName(ctx context.Context, name string, level shared.EducationLevel) (*subject.Subject, error) {
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s
		FROM subjects
		WHERE lower(name) = $1 AND education_level = $2
	`, subjectColumns), subject.NormalizeName(name), level.String())

	s, err := scanSubject(row)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrSubjectNotFound
		}
		return nil, shared.WrapError("subject", "FindByName",
			shared.ErrPersistence, "failed to find subject", err)
	}
	return s, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Composite configuration
// ──────────────────────────────────────────────────────────────────────────────

// GetConfig returns the composite configuration for the subject at the level.
// Returns shared.ErrConfigNotFound when none is stored.
func (r *SubjectRepository) GetConfig(ctx context.Context, subjectName string, level shared.EducationLevel) (*subject.CompositeConfig, error) {
	var cfg subject.CompositeConfig
	err := r.conn.QueryRow(ctx, `
		SELECT id, subject_name, education_level, is_composite, updated_at
		FROM composite_configs
		WHERE lower(subject_name) = $1 AND education_level = $2
	`, subject.NormalizeName(subjectName), level.String()).Scan(
		&cfg.ID,
		&cfg.SubjectName,
		&cfg.EducationLevel,
		&cfg.IsComposite,
		&cfg.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrConfigNotFound
		}
		return nil, shared.WrapError("subject", "GetConfig",
			shared.ErrPersistence, "failed to load composite config", err)
	}

	rows, err := r.conn.Query(ctx, `
		SELECT component_name, weight
		FROM composite_config_components
		WHERE config_id = $1
		ORDER BY position
	`, cfg.ID)
	if err != nil {
		return nil, shared.WrapError("subject", "GetConfig",
			shared.ErrPersistence, "failed to load components", err)
	}
	defer rows.Close()

	for rows.Next() {
		var comp subject.Component
		var weight float64
		if err := rows.Scan(&comp.Name, &weight); err != nil {
			return nil, shared.WrapError("subject", "GetConfig",
				shared.ErrPersistence, "failed to scan component row", err)
		}
		comp.Weight = shared.Weight(weight)
		cfg.Components = append(cfg.Components, comp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SaveConfig stores the configuration and retags the matching subject rows
// in a single transaction. The composite parent row gets is_composite set,
// each listed component row gets is_component, composite_parent and its
// weight, and rows no longer listed are cleared. A failure anywhere rolls
// back the whole write.
func (r *SubjectRepository) SaveConfig(ctx context.Context, cfg *subject.CompositeConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}

	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		var configID string
		err := tx.QueryRow(ctx, `
			INSERT INTO composite_configs (id, subject_name, education_level, is_composite, updated_at)
			VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (subject_name, education_level) DO UPDATE SET
				is_composite = EXCLUDED.is_composite,
				updated_at = now()
			RETURNING id
		`, cfg.ID, cfg.SubjectName, cfg.EducationLevel.String(), cfg.IsComposite).Scan(&configID)
		if err != nil {
			return err
		}
		cfg.ID = configID

		if _, err := tx.Exec(ctx, `
			DELETE FROM composite_config_components WHERE config_id = $1
		`, configID); err != nil {
			return err
		}

		batch := &pgx.Batch{}
		for i, comp := range cfg.Components {
			batch.Queue(`
				INSERT INTO composite_config_components (config_id, position, component_name, weight)
				VALUES ($1, $2, $3, $4)
			`, configID, i, comp.Name, comp.Weight.Float64())
		}
		br := tx.SendBatch(ctx, batch)
		for range cfg.Components {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		if err := br.Close(); err != nil {
			return err
		}

		// Clear tags on rows that used to belong to this composite.
		if _, err := tx.Exec(ctx, `
			UPDATE subjects
			SET is_component = FALSE, composite_parent = NULL, component_weight = 0
			WHERE lower(composite_parent) = lower($1) AND education_level = $2
		`, cfg.SubjectName, cfg.EducationLevel.String()); err != nil {
			return err
		}

		// Tag the parent row.
		if _, err := tx.Exec(ctx, `
			UPDATE subjects
			SET is_composite = $3
			WHERE lower(name) = lower($1) AND education_level = $2
		`, cfg.SubjectName, cfg.EducationLevel.String(), cfg.IsComposite); err != nil {
			return err
		}

		// Tag each component row with its parent and weight.
		for _, comp := range cfg.Components {
			if _, err := tx.Exec(ctx, `
				UPDATE subjects
				SET is_component = TRUE, composite_parent = $3, component_weight = $4
				WHERE lower(name) = lower($1) AND education_level = $2
			`, comp.Name, cfg.EducationLevel.String(), cfg.SubjectName, comp.Weight.Float64()); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return shared.WrapError("subject", "SaveConfig",
			shared.ErrPersistence, "failed to save composite config", err)
	}

	r.log.Info("composite config saved",
		logger.SubjectName(cfg.SubjectName),
		logger.String("education_level", cfg.EducationLevel.String()),
		logger.Int("components", len(cfg.Components)))
	return nil
}

// ToggleComposite flips the is_composite flag without touching component
// weights, so re-enabling restores the previous breakdown. Returns the
// new flag value.
func (r *SubjectRepository) ToggleComposite(ctx context.Context, subjectName string, level shared.EducationLevel) (bool, error) {
	var enabled bool
	err := r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE composite_configs
			SET is_composite = NOT is_composite, updated_at = now()
			WHERE lower(subject_name) = $1 AND education_level = $2
			RETURNING is_composite
		`, subject.NormalizeName(subjectName), level.String()).Scan(&enabled)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrConfigNotFound
			}
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE subjects
			SET is_composite = $3
			WHERE lower(name) = $1 AND education_level = $2
		`, subject.NormalizeName(subjectName), level.String(), enabled)
		return err
	})
	if err != nil {
		if errors.Is(err, shared.ErrConfigNotFound) {
			return false, err
		}
		return false, shared.WrapError("subject", "ToggleComposite",
			shared.ErrPersistence, "failed to toggle composite flag", err)
	}

	r.log.Info("composite flag toggled",
		logger.SubjectName(subjectName),
		logger.String("education_level", level.String()),
		logger.Bool("is_composite", enabled))
	return enabled, nil
}
