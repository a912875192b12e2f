package project_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/substratehq/substrate/modules/project"
)

func TestServiceCRUD(t *testing.T) {
	t.Parallel()

	svc := project.NewService(project.NewMemoryStore())
	ctx := context.Background()
	owner := uuid.New()

	created, err := svc.Create(ctx, owner, "  Roadmap  ", "Q3 planning")
	require.NoError(t, err)
	assert.Equal(t, "Roadmap", created.Title, "title is trimmed")
	assert.Equal(t, project.StatusActive, created.Status, "new projects start active")
	assert.Equal(t, owner, created.OwnerID)

	got, err := svc.Get(ctx, owner, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	updated, err := svc.Update(ctx, owner, created.ID, project.UpdateParams{
		Title:  "Roadmap v2",
		Status: "completed",
	})
	require.NoError(t, err)
	assert.Equal(t, "Roadmap v2", updated.Title)
	assert.Equal(t, project.StatusCompleted, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	// Omitting status keeps the previous one.
	kept, err := svc.Update(ctx, owner, created.ID, project.UpdateParams{Title: "Roadmap v3"})
	require.NoError(t, err)
	assert.Equal(t, project.StatusCompleted, kept.Status)

	list, err := svc.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, svc.Delete(ctx, owner, created.ID))
	_, err = svc.Get(ctx, owner, created.ID)
	assert.ErrorIs(t, err, project.ErrProjectNotFound)
}

func TestServiceValidation(t *testing.T) {
	t.Parallel()

	svc := project.NewService(project.NewMemoryStore())
	ctx := context.Background()
	owner := uuid.New()

	_, err := svc.Create(ctx, owner, "   ", "")
	assert.ErrorIs(t, err, project.ErrInvalidTitle)

	_, err = svc.Create(ctx, owner, strings.Repeat("x", 121), "")
	assert.ErrorIs(t, err, project.ErrInvalidTitle)

	p, err := svc.Create(ctx, owner, "Valid", "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, owner, p.ID, project.UpdateParams{Title: "Valid", Status: "archived"})
	assert.ErrorIs(t, err, project.ErrInvalidStatus)
}

func TestServiceOwnerIsolation(t *testing.T) {
	t.Parallel()

	svc := project.NewService(project.NewMemoryStore())
	ctx := context.Background()
	alice, mallory := uuid.New(), uuid.New()

	p, err := svc.Create(ctx, alice, "Private", "")
	require.NoError(t, err)

	_, err = svc.Get(ctx, mallory, p.ID)
	assert.ErrorIs(t, err, project.ErrProjectNotFound, "other owners see a 404, not a 403")

	_, err = svc.Update(ctx, mallory, p.ID, project.UpdateParams{Title: "Hijacked"})
	assert.ErrorIs(t, err, project.ErrProjectNotFound)

	assert.ErrorIs(t, svc.Delete(ctx, mallory, p.ID), project.ErrProjectNotFound)

	list, err := svc.List(ctx, mallory)
	require.NoError(t, err)
	assert.Empty(t, list)

	got, err := svc.Get(ctx, alice, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Private", got.Title)
}
