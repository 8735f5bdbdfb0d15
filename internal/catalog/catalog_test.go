package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Get(t *testing.T) {
	repo := NewMemoryRepository(Seed())

	p, err := repo.Get(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "USB-C Cable 2m", p.Name)

	_, err = repo.Get(context.Background(), "unknown-id")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_AddDefaults(t *testing.T) {
	repo := NewMemoryRepository(nil)
	repo.now = func() time.Time { return time.UnixMilli(1700000000000) }

	p, err := repo.Add(context.Background(), Product{})
	require.NoError(t, err)

	assert.Equal(t, "1700000000000", p.ID)
	assert.Equal(t, DefaultName, p.Name)
	assert.Equal(t, DefaultCategory, p.Category)
	assert.Equal(t, StatusPendingApproval, p.Status)
	assert.Equal(t, 0.0, p.Price)
	assert.NotNil(t, p.Images)

	// The added product is findable by id and via List.
	got, err := repo.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryRepository_AddKeepsProvidedFields(t *testing.T) {
	repo := NewMemoryRepository(nil)

	p, err := repo.Add(context.Background(), Product{
		Name:        "Standing Desk",
		Category:    "Furniture",
		Description: "Electric sit-stand desk",
		Price:       349.5,
		Status:      StatusInStock,
	})
	require.NoError(t, err)

	assert.Equal(t, "Standing Desk", p.Name)
	assert.Equal(t, "Furniture", p.Category)
	assert.Equal(t, StatusInStock, p.Status)
	assert.Equal(t, 349.5, p.Price)
}

func TestMemoryRepository_ListReturnsCopy(t *testing.T) {
	repo := NewMemoryRepository(Seed())

	first, err := repo.List(context.Background())
	require.NoError(t, err)
	first[0].Name = "mutated"

	second, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "USB-C Cable 2m", second[0].Name)
}

func TestMemoryRepository_Filter(t *testing.T) {
	repo := NewMemoryRepository(Seed())

	got, err := repo.Filter(context.Background(), "wireless mouse")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "3", got[0].ID)
}
