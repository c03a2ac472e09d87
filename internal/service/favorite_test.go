package service_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ierr "github.com/quecocinohoy/backend/internal/errors"
	"github.com/quecocinohoy/backend/internal/logger"
	"github.com/quecocinohoy/backend/internal/model"
	"github.com/quecocinohoy/backend/internal/service"
	"github.com/quecocinohoy/backend/internal/testhelpers"
)

func sampleRecipe(id string) model.Recipe {
	return model.Recipe{
		ID:           id,
		Title:        "Receta " + id,
		Instructions: []string{"Cocinar"},
		ImageURL:     "https://img.example.com/" + id + ".png",
	}
}

func TestFavorites_FreeLimit(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	userID := uuid.New()
	svc := service.NewFavoriteService(db, testhelpers.StaticEntitlements{}, logger.NewNop())
	ctx := context.Background()

	for i := 0; i < service.FreeFavoritesLimit; i++ {
		_, err := svc.Add(ctx, userID, sampleRecipe(fmt.Sprintf("r%d", i)))
		require.NoError(t, err)
	}

	_, err := svc.Add(ctx, userID, sampleRecipe("r-extra"))
	require.Error(t, err)
	assert.True(t, ierr.IsPermissionDenied(err))
	assert.Equal(t, "favorites", ierr.ReportableDetails(err)["feature"])

	// re-adding an existing favorite is not a new slot
	fav, err := svc.Add(ctx, userID, sampleRecipe("r0"))
	require.NoError(t, err)
	assert.Equal(t, "r0", fav.RecipeID)

	require.NoError(t, svc.Remove(ctx, userID, "r1"))
	_, err = svc.Add(ctx, userID, sampleRecipe("r-extra"))
	require.NoError(t, err)
}

func TestFavorites_PremiumUnlimitedAndKeepsImage(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	userID := uuid.New()
	svc := service.NewFavoriteService(db, testhelpers.StaticEntitlements{userID: true}, logger.NewNop())
	ctx := context.Background()

	for i := 0; i < service.FreeFavoritesLimit+2; i++ {
		_, err := svc.Add(ctx, userID, sampleRecipe(fmt.Sprintf("r%d", i)))
		require.NoError(t, err)
	}

	favs, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, favs, service.FreeFavoritesLimit+2)
	assert.NotEmpty(t, favs[0].Recipe.Data().ImageURL)
}

func TestFavorites_FreeDropsImage(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	userID := uuid.New()
	svc := service.NewFavoriteService(db, testhelpers.StaticEntitlements{}, logger.NewNop())

	fav, err := svc.Add(context.Background(), userID, sampleRecipe("r1"))
	require.NoError(t, err)
	assert.Empty(t, fav.Recipe.Data().ImageURL)
	assert.Equal(t, "Receta r1", fav.Title)
}

func TestFavorites_IsolatedPerUser(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	alice, bob := uuid.New(), uuid.New()
	svc := service.NewFavoriteService(db, testhelpers.StaticEntitlements{}, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Add(ctx, alice, sampleRecipe("r1"))
	require.NoError(t, err)

	favs, err := svc.List(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, favs)

	err = svc.Remove(ctx, bob, "r1")
	assert.True(t, ierr.IsNotFound(err))
}
