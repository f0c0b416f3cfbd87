package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bookshelf/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Columns UpdateFields may write. author_id and created_at are fixed at creation.
var bookMutableColumns = map[string]bool{
	models.BookColumnTitle:       true,
	models.BookColumnDescription: true,
	models.BookColumnGenre:       true,
	models.BookColumnCoverImage:  true,
	models.BookColumnFile:        true,
}

// checkBookColumns rejects keys outside the mutable book columns.
func checkBookColumns(fields map[string]any) error {
	for column := range fields {
		if !bookMutableColumns[column] {
			return fmt.Errorf("column %q of books is not updatable", column)
		}
	}
	return nil
}

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

// GetAll retrieves all books in creation order.
func (r *GORMBookRepository) GetAll(ctx context.Context) ([]models.Book, error) {
	books := []models.Book{}
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&books).Error; err != nil {
		return nil, fmt.Errorf("failed to get all books: %w", err)
	}
	return books, nil
}

// GetByID retrieves a single book by its ID from the database.
func (r *GORMBookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := r.db.WithContext(ctx).First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get book by ID %s: %w", id, err)
	}
	return &book, nil
}

// Create creates a new book in the database.
func (r *GORMBookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if err := r.db.WithContext(ctx).Create(book).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("book with ID %s: %w", book.ID, ErrDuplicate)
		}
		return fmt.Errorf("failed to create book: %w", err)
	}
	return nil
}

// UpdateFields writes only the given columns, so concurrent updates of
// different fields do not overwrite each other.
func (r *GORMBookRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) (*models.Book, error) {
	if err := checkBookColumns(fields); err != nil {
		return nil, err
	}

	values := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		values[column] = value
	}
	values["updated_at"] = time.Now()

	res := r.db.WithContext(ctx).
		Model(&models.Book{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return nil, fmt.Errorf("failed to update book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	return r.GetByID(ctx, id)
}

// Delete deletes a book by its ID from the database.
func (r *GORMBookRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Delete(&models.Book{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete book: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	return nil
}
