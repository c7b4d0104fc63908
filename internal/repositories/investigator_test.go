package repositories_test

import (
	"context"
	"io"
	"testing"

	"github.com/myrjola/keeper/internal/models"
	"github.com/myrjola/keeper/internal/repositories"
	"github.com/myrjola/keeper/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvestigatorRepository(t *testing.T) {
	repo := repositories.NewInvestigatorRepository(newTestDB(t), testhelpers.NewLogger(io.Discard))
	ctx := context.Background()

	investigator, err := repo.Get(ctx, "evelyn-hart")
	require.NoError(t, err)
	assert.Equal(t, "Evelyn Hart", investigator.Name)
	assert.Equal(t, "Photojournalist", investigator.Occupation)
	assert.Equal(t, []string{"Curious", "Guarded", "Calm under pressure"}, investigator.PersonalityTraits)
	assert.Equal(t, models.LanguageEnglish, investigator.Language)
	assert.Empty(t, investigator.ScenarioID)

	_, err = repo.Get(ctx, "nobody")
	require.ErrorIs(t, err, repositories.ErrNotFound)

	investigators, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, investigators, 1)
	assert.Equal(t, "evelyn-hart", investigators[0].ID)
}
