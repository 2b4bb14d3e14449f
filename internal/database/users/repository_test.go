package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/whispered/usersd/internal/entities"
)

func setupTestDB(t *testing.T) *Repository {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.User{})
	require.NoError(t, err)

	return NewRepository(db)
}

func TestRepository_Create(t *testing.T) {
	repo := setupTestDB(t)

	user := &entities.User{
		Username:     "Alice",
		PasswordHash: "$2a$10$fakehash",
		Extra:        map[string]any{"team": "ops"},
	}
	err := repo.Create(user)

	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "alice", user.Username, "username should be stored lower-cased")
}

func TestRepository_GetByUsername_CaseInsensitive(t *testing.T) {
	repo := setupTestDB(t)

	created := &entities.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(created))

	for _, lookup := range []string{"alice", "Alice", "ALICE"} {
		user, err := repo.GetByUsername(lookup)
		require.NoError(t, err, "lookup %q", lookup)
		assert.Equal(t, created.ID, user.ID)
	}
}

func TestRepository_GetByUsername_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetByUsername("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_GetByID(t *testing.T) {
	repo := setupTestDB(t)

	created := &entities.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(created))

	user, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = repo.GetByID(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Exists(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.Create(&entities.User{Username: "alice", PasswordHash: "hash"}))

	exists, err := repo.Exists("ALICE")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.Exists("bob")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRepository_ExtraFieldsRoundTrip(t *testing.T) {
	repo := setupTestDB(t)

	created := &entities.User{
		Username:     "alice",
		PasswordHash: "hash",
		Extra:        map[string]any{"name": "Alice", "team": "ops"},
	}
	require.NoError(t, repo.Create(created))

	user, err := repo.GetByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, "Alice", user.Extra["name"])
	assert.Equal(t, "ops", user.Extra["team"])
}

func TestRepository_Update(t *testing.T) {
	repo := setupTestDB(t)

	created := &entities.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(created))

	created.Extra = map[string]any{"team": "dev"}
	require.NoError(t, repo.Update(created))

	user, err := repo.GetByID(created.ID)
	require.NoError(t, err)
	assert.Equal(t, "dev", user.Extra["team"])
}

func TestRepository_Delete(t *testing.T) {
	repo := setupTestDB(t)

	created := &entities.User{Username: "alice", PasswordHash: "hash"}
	require.NoError(t, repo.Create(created))

	require.NoError(t, repo.Delete(created.ID))

	_, err := repo.GetByID(created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_Count(t *testing.T) {
	repo := setupTestDB(t)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 0, count)

	require.NoError(t, repo.Create(&entities.User{Username: "alice", PasswordHash: "hash"}))
	require.NoError(t, repo.Create(&entities.User{Username: "bob", PasswordHash: "hash"}))

	count, err = repo.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}
