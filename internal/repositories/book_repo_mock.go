package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"bookshelf/internal/models"

	"github.com/google/uuid"
)

// MockBookRepository is an in-memory implementation of BookRepository.
type MockBookRepository struct {
	books map[string]models.Book
	mu    sync.RWMutex
}

// NewMockBookRepository creates a new instance of MockBookRepository.
func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{
		books: make(map[string]models.Book),
	}
}

// GetAll returns all books in creation order.
func (r *MockBookRepository) GetAll(ctx context.Context) ([]models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bookList := make([]models.Book, 0, len(r.books))
	for _, b := range r.books {
		bookList = append(bookList, b)
	}
	sort.SliceStable(bookList, func(i, j int) bool {
		return bookList[i].CreatedAt.Before(bookList[j].CreatedAt)
	})
	return bookList, nil
}

// GetByID returns a book by its ID.
func (r *MockBookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	return &book, nil
}

// Create adds a new book.
func (r *MockBookRepository) Create(ctx context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if _, ok := r.books[book.ID]; ok {
		return fmt.Errorf("book with ID %s: %w", book.ID, ErrDuplicate)
	}
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now
	r.books[book.ID] = *book
	return nil
}

// UpdateFields writes the given columns of an existing book.
func (r *MockBookRepository) UpdateFields(ctx context.Context, id string, fields map[string]any) (*models.Book, error) {
	if err := checkBookColumns(fields); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return nil, fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	for column, value := range fields {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("column %q of books expects a string, got %T", column, value)
		}
		switch column {
		case models.BookColumnTitle:
			book.Title = s
		case models.BookColumnDescription:
			book.Description = s
		case models.BookColumnGenre:
			book.Genre = s
		case models.BookColumnCoverImage:
			book.CoverImage = s
		case models.BookColumnFile:
			book.File = s
		}
	}
	book.UpdatedAt = time.Now()
	r.books[id] = book
	return &book, nil
}

// Delete removes a book by its ID.
func (r *MockBookRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.books[id]; !ok {
		return fmt.Errorf("book with ID %s: %w", id, ErrNotFound)
	}
	delete(r.books, id)
	return nil
}
