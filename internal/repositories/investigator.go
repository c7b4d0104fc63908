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

type InvestigatorRepository struct {
	dbs    *sqlite.Database
	logger *slog.Logger
}

func NewInvestigatorRepository(dbs *sqlite.Database, logger *slog.Logger) *InvestigatorRepository {
	return &InvestigatorRepository{
		dbs:    dbs,
		logger: logger.With("source", "InvestigatorRepository"),
	}
}

type investigatorRow struct {
	ID                string         `db:"id"`
	Name              string         `db:"name"`
	Occupation        string         `db:"occupation"`
	Background        string         `db:"background"`
	PersonalityTraits sql.NullString `db:"personality_traits"`
	SkillsSummary     string         `db:"skills_summary"`
	PlayerNotes       string         `db:"player_notes"`
	Language          string         `db:"language"`
	ScenarioID        sql.NullString `db:"scenario_id"`
	Created           time.Time      `db:"created"`
	Updated           time.Time      `db:"updated"`
}

func (row investigatorRow) toModel() (*models.Investigator, error) {
	investigator := models.Investigator{
		ID:                row.ID,
		Name:              row.Name,
		Occupation:        row.Occupation,
		Background:        row.Background,
		PersonalityTraits: []string{},
		SkillsSummary:     row.SkillsSummary,
		PlayerNotes:       row.PlayerNotes,
		Language:          models.Language(row.Language),
		ScenarioID:        row.ScenarioID.String,
		CreatedAt:         row.Created,
		UpdatedAt:         row.Updated,
	}
	if err := fromJSON(row.PersonalityTraits, &investigator.PersonalityTraits); err != nil {
		return nil, errors.Wrap(err, "decode personality traits", slog.String("investigator_id", row.ID))
	}
	return &investigator, nil
}

const selectInvestigators = `SELECT id, name, occupation, background, personality_traits, skills_summary,
       player_notes, language, scenario_id, created, updated
FROM investigators`

func (r *InvestigatorRepository) Get(ctx context.Context, id string) (*models.Investigator, error) {
	var row investigatorRow
	if err := r.dbs.ReadOnly.GetContext(ctx, &row, selectInvestigators+` WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "read investigator", slog.String("investigator_id", id))
	}
	return row.toModel()
}

func (r *InvestigatorRepository) List(ctx context.Context) ([]models.Investigator, error) {
	var rows []investigatorRow
	if err := r.dbs.ReadOnly.SelectContext(ctx, &rows, selectInvestigators+` ORDER BY name, id`); err != nil {
		return nil, errors.Wrap(err, "select investigators")
	}
	investigators := make([]models.Investigator, 0, len(rows))
	for _, row := range rows {
		investigator, err := row.toModel()
		if err != nil {
			return nil, err
		}
		investigators = append(investigators, *investigator)
	}
	return investigators, nil
}
