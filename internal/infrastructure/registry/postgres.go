package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/turtacn/StoryLink-Intelligence/internal/config"
	"github.com/turtacn/StoryLink-Intelligence/internal/infrastructure/monitoring/logging"
	apperrors "github.com/turtacn/StoryLink-Intelligence/pkg/errors"
	"github.com/turtacn/StoryLink-Intelligence/pkg/types/story"
)

// querier is the subset of pgxpool.Pool the registry reader needs.  Tests
// provide a fake implementation.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// NewPool establishes a pgx connection pool against the registry database
// and verifies connectivity before returning.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, log logging.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "invalid registry database configuration")
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)
	if cfg.MinConns > 0 {
		poolCfg.MinConns = int32(cfg.MinConns)
	}
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "failed to create registry connection pool")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryUnavailable, "registry database unreachable")
	}

	log.Info("connected to registry database",
		logging.String("host", cfg.Host),
		logging.Int("port", cfg.Port),
		logging.String("database", cfg.DBName),
	)
	return pool, nil
}

// PostgresRegistry reads story entities from the registry database.
type PostgresRegistry struct {
	pool   querier
	logger logging.Logger
}

// NewPostgresRegistry constructs a registry reader over an established pool.
func NewPostgresRegistry(pool *pgxpool.Pool, log logging.Logger) *PostgresRegistry {
	return newPostgresRegistry(pool, log)
}

func newPostgresRegistry(pool querier, log logging.Logger) *PostgresRegistry {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &PostgresRegistry{pool: pool, logger: log}
}

// ListEntities returns every entity of the project, filtered to the supplied
// types when non-empty.  Rows that cannot be decoded into a usable Entity are
// skipped with a warning so one corrupt row never fails a whole analysis.
func (r *PostgresRegistry) ListEntities(ctx context.Context, projectID string, types []story.EntityType) ([]story.Entity, error) {
	query := `
		SELECT id, project_id, entity_type, name, aliases, attributes, importance, tags
		FROM story_entities
		WHERE project_id = $1`
	args := []any{projectID}

	if len(types) > 0 {
		typeNames := make([]string, len(types))
		for i, t := range types {
			typeNames[i] = string(t)
		}
		query += ` AND entity_type = ANY($2)`
		args = append(args, typeNames)
	}
	query += ` ORDER BY name`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryQueryFailed,
			fmt.Sprintf("failed to list entities for project %s", projectID))
	}
	defer rows.Close()

	var (
		entities []story.Entity
		skipped  int
	)
	for rows.Next() {
		entity, err := r.scanEntity(rows)
		if err != nil {
			skipped++
			r.logger.Warn("skipping malformed registry entity",
				logging.String("project_id", projectID),
				logging.Err(err),
			)
			continue
		}
		entities = append(entities, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeRegistryQueryFailed,
			fmt.Sprintf("entity row iteration failed for project %s", projectID))
	}

	if skipped > 0 {
		r.logger.Warn("registry snapshot loaded with malformed entities skipped",
			logging.String("project_id", projectID),
			logging.Int("skipped", skipped),
			logging.Int("loaded", len(entities)),
		)
	}
	return entities, nil
}

func (r *PostgresRegistry) scanEntity(rows pgx.Rows) (story.Entity, error) {
	var (
		e         story.Entity
		typeName  string
		attrsJSON []byte
		important string
	)
	if err := rows.Scan(&e.ID, &e.ProjectID, &typeName, &e.Name, &e.Aliases, &attrsJSON, &important, &e.Tags); err != nil {
		return story.Entity{}, apperrors.Wrap(err, apperrors.ErrCodeEntityMalformed, "failed to scan entity row")
	}

	entityType, ok := story.ParseEntityType(typeName)
	if !ok {
		return story.Entity{}, apperrors.Newf(apperrors.ErrCodeEntityMalformed,
			"entity %s has unknown type %q", e.ID, typeName)
	}
	e.Type = entityType
	e.Importance = story.Importance(important)

	if e.Name == "" {
		return story.Entity{}, apperrors.Newf(apperrors.ErrCodeEntityMalformed,
			"entity %s has an empty name", e.ID)
	}

	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
			// Attributes drive consistency checks only; a corrupt blob
			// downgrades the entity rather than discarding it.
			r.logger.Warn("entity attributes undecodable, proceeding without them",
				logging.String("entity_id", e.ID),
				logging.Err(err),
			)
			e.Attributes = nil
		}
	}
	return e, nil
}
