package repositories

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/myrjola/keeper/internal/errors"
	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/sqlite"
)

type ScenarioRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewScenarioRepository(dbs *sqlite.Database, logger *slog.Logger) *ScenarioRepository {
	return &ScenarioRepository{
		dbs:    dbs,
		logger: logger.With("source", "ScenarioRepository"),
	}
}

type scenarioRow struct {
	ID               string         `db:"id"`
	Name             string         `db:"name"`
	Premise          string         `db:"premise"`
	ShortDescription string         `db:"short_description"`
	Source           string         `db:"source"`
	Tags             sql.NullString `db:"tags"`
	Meta             sql.NullString `db:"meta"`
	Created          time.Time      `db:"created"`
	Updated          time.Time      `db:"updated"`
}

func (row scenarioRow) toModel() (*models.Scenario, error) {
	scenario := models.Scenario{
		ID:               row.ID,
		Name:             row.Name,
		Premise:          row.Premise,
		ShortDescription: row.ShortDescription,
		Source:           models.ScenarioSource(row.Source),
		Tags:             nil,
		Meta:             nil,
		CreatedAt:        row.Created,
		UpdatedAt:        row.Updated,
	}
	if err := fromJSON(row.Tags, &scenario.Tags); err != nil {
		return nil, errors.Wrap(err, "decode tags", slog.String("scenario_id", row.ID))
	}
	if err := fromJSON(row.Meta, &scenario.Meta); err != nil {
		return nil, errors.Wrap(err, "decode meta", slog.String("scenario_id", row.ID))
	}
	return &scenario, nil
}

const selectScenarios = `SELECT id, name, premise, short_description, source, tags, meta, created, updated
FROM scenarios`

func (r *ScenarioRepository) Get(ctx context.Context, id string) (*models.Scenario, error) {
	var row scenarioRow
	if err := r.dbs.ReadOnly.GetContext(ctx, &row, selectScenarios+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "read scenario", slog.String("scenario_id", id))
	}
	return row.toModel()
}

// List returns all scenarios, predefined ones first.
func (r *ScenarioRepository) List(ctx context.Context) ([]models.Scenario, error) {
	var rows []scenarioRow
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows,
		selectScenarios+` ORDER BY source = 'custom', created, name`); err != nil {
		return nil, errors.Wrap(err, "select scenarios")
	}
	scenarios := make([]models.Scenario, 0, len(rows))
	for _, row := range rows {
		scenario, err := row.toModel()
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, *scenario)
	}
	return scenarios, nil
}
