package repositories_test

import (
	"context"
	"fmt"
	"testing"

	"bookshelf/internal/database"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := database.Open(database.DriverSQLite, dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestGORMUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMUserRepository(openTestDB(t))

	user := &models.User{Name: "Ann", Email: "ann@x.com", Password: "digest"}
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEmpty(t, user.ID)

	found, err := repo.GetByEmail(ctx, "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)

	found, err = repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", found.Name)

	err = repo.Create(ctx, &models.User{Name: "Other", Email: "ann@x.com", Password: "x"})
	assert.ErrorIs(t, err, repositories.ErrDuplicate)

	_, err = repo.GetByEmail(ctx, "nobody@x.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestGORMBookRepository(t *testing.T) {
	ctx := context.Background()
	repo := repositories.NewGORMBookRepository(openTestDB(t))

	book := &models.Book{
		Title:      "Dune",
		Genre:      "sci-fi",
		AuthorID:   "author-1",
		CoverImage: "memory://assets/book-covers/a.png",
		File:       "memory://assets/book-pdfs/a.pdf",
	}
	require.NoError(t, repo.Create(ctx, book))
	require.NotEmpty(t, book.ID)

	second := &models.Book{Title: "Emma", Genre: "classic", AuthorID: "author-2", CoverImage: "c", File: "f"}
	require.NoError(t, repo.Create(ctx, second))

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, book.ID, all[0].ID)

	// Only the given columns are written.
	updated, err := repo.UpdateFields(ctx, book.ID, map[string]any{models.BookColumnTitle: "Dune Messiah"})
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", updated.Title)
	assert.Equal(t, "sci-fi", updated.Genre)
	assert.Equal(t, book.CoverImage, updated.CoverImage)
	assert.Equal(t, "author-1", updated.AuthorID)

	_, err = repo.UpdateFields(ctx, book.ID, map[string]any{models.BookColumnGenre: "classic"})
	require.NoError(t, err)
	stored, err := repo.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dune Messiah", stored.Title, "a later update of another field keeps the title")
	assert.Equal(t, "classic", stored.Genre)

	_, err = repo.UpdateFields(ctx, book.ID, map[string]any{"author_id": "intruder"})
	assert.Error(t, err)
	stored, err = repo.GetByID(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, "author-1", stored.AuthorID)

	_, err = repo.UpdateFields(ctx, "missing", map[string]any{models.BookColumnTitle: "x"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, book.ID))
	_, err = repo.GetByID(ctx, book.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, book.ID), repositories.ErrNotFound)
}

func TestMockRepositoriesMatchGORMBehaviour(t *testing.T) {
	ctx := context.Background()

	users := repositories.NewMockUserRepository()
	require.NoError(t, users.Create(ctx, &models.User{Name: "A", Email: "a@x.com", Password: "d"}))
	assert.ErrorIs(t, users.Create(ctx, &models.User{Name: "B", Email: "a@x.com", Password: "d"}), repositories.ErrDuplicate)
	_, err := users.GetByEmail(ctx, "b@x.com")
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	books := repositories.NewMockBookRepository()
	book := &models.Book{Title: "T", Genre: "G", AuthorID: "a"}
	require.NoError(t, books.Create(ctx, book))

	_, err = books.UpdateFields(ctx, book.ID, map[string]any{"author_id": "b"})
	assert.Error(t, err)
	updated, err := books.UpdateFields(ctx, book.ID, map[string]any{models.BookColumnCoverImage: "c2"})
	require.NoError(t, err)
	assert.Equal(t, "c2", updated.CoverImage)
	assert.Equal(t, "T", updated.Title)
	assert.Equal(t, "a", updated.AuthorID)
	_, err = books.UpdateFields(ctx, "missing", map[string]any{models.BookColumnTitle: "x"})
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	require.NoError(t, books.Delete(ctx, book.ID))
	assert.ErrorIs(t, books.Delete(ctx, book.ID), repositories.ErrNotFound)
}
