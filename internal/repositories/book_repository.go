package repositories

import (
	"context"

	"bookshelf/internal/models"
)

// BookRepository defines the interface for book data access.
type BookRepository interface {
	GetAll(ctx context.Context) ([]models.Book, error)
	GetByID(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	// UpdateFields writes only the given columns of a book and returns the
	// stored result. Keys must be mutable book columns.
	UpdateFields(ctx context.Context, id string, fields map[string]any) (*models.Book, error)
	Delete(ctx context.Context, id string) error
}
