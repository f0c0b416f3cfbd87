package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"bookshelf/internal/apperror"
	"bookshelf/internal/middleware"
	"bookshelf/internal/models"
	"bookshelf/internal/security"
	"bookshelf/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	fieldCoverImage = "coverImage"
	fieldFile       = "file"
)

// BookHandler handles HTTP requests for books.
type BookHandler struct {
	service   *services.BookService
	uploadDir string
	logger    *slog.Logger
}

// NewBookHandler creates a new BookHandler. Uploaded files are staged in
// uploadDir before they are handed to the service.
func NewBookHandler(service *services.BookService, uploadDir string, logger *slog.Logger) *BookHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BookHandler{
		service:   service,
		uploadDir: uploadDir,
		logger:    logger,
	}
}

// RegisterRoutes registers the book routes. Reads are public; writes go
// through the guard.
func (h *BookHandler) RegisterRoutes(router fiber.Router, guard fiber.Handler) {
	bookRoutes := router.Group("/books")
	bookRoutes.Get("/", h.HandleGetBooks)
	bookRoutes.Get("/:bookId", h.HandleGetBookByID)
	bookRoutes.Post("/", guard, h.HandleCreateBook)
	bookRoutes.Patch("/:bookId", guard, h.HandleUpdateBook)
	bookRoutes.Delete("/:bookId", guard, h.HandleDeleteBook)
}

// HandleGetBooks retrieves all books.
func (h *BookHandler) HandleGetBooks(c *fiber.Ctx) error {
	books, err := h.service.ListBooks(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(books)
}

// HandleGetBookByID retrieves a single book by its ID.
func (h *BookHandler) HandleGetBookByID(c *fiber.Ctx) error {
	book, err := h.service.GetBook(c.UserContext(), c.Params("bookId"))
	if err != nil {
		return err
	}
	return c.JSON(book)
}

// HandleCreateBook creates a book from a multipart form carrying title,
// genre, an optional description and the coverImage and file uploads.
func (h *BookHandler) HandleCreateBook(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return apperror.Validation("Request must be multipart/form-data")
	}

	files, err := h.stage(c, form, fieldCoverImage, fieldFile)
	if err != nil {
		return err
	}

	book, err := h.service.CreateBook(c.UserContext(), middleware.IdentityFrom(c), services.CreateBookInput{
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Genre:       formValue(form, "genre"),
		Cover:       files[fieldCoverImage],
		Content:     files[fieldFile],
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": book.ID})
}

// updateBookRequest is the JSON form of a partial update.
type updateBookRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Genre       *string `json:"genre"`
}

// HandleUpdateBook applies a partial update. Multipart bodies may replace the
// cover and the content; JSON bodies carry scalar fields only.
func (h *BookHandler) HandleUpdateBook(c *fiber.Ctx) error {
	identity := middleware.IdentityFrom(c)
	bookID := c.Params("bookId")

	if !isMultipart(c) {
		var req updateBookRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return apperror.Validation("Invalid request body")
			}
		}
		return h.update(c, identity, bookID, services.UpdateBookInput{
			Patch: models.BookPatch{Title: req.Title, Description: req.Description, Genre: req.Genre},
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return apperror.Validation("Invalid multipart body")
	}
	files, err := h.stage(c, form, fieldCoverImage, fieldFile)
	if err != nil {
		return err
	}
	return h.update(c, identity, bookID, services.UpdateBookInput{
		Patch: models.BookPatch{
			Title:       optionalValue(form, "title"),
			Description: optionalValue(form, "description"),
			Genre:       optionalValue(form, "genre"),
		},
		Cover:   files[fieldCoverImage],
		Content: files[fieldFile],
	})
}

func (h *BookHandler) update(c *fiber.Ctx, identity security.Identity, bookID string, in services.UpdateBookInput) error {
	book, err := h.service.UpdateBook(c.UserContext(), identity, bookID, in)
	if err != nil {
		return err
	}
	return c.JSON(book)
}

// HandleDeleteBook deletes a book and both of its assets.
func (h *BookHandler) HandleDeleteBook(c *fiber.Ctx) error {
	if err := h.service.DeleteBook(c.UserContext(), middleware.IdentityFrom(c), c.Params("bookId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// stage saves the named file fields of form under uploadDir. Fields that are
// absent are left out of the result. If any save fails, files already staged
// are removed.
func (h *BookHandler) stage(c *fiber.Ctx, form *multipart.Form, fields ...string) (map[string]*services.LocalFile, error) {
	staged := make(map[string]*services.LocalFile, len(fields))
	for _, field := range fields {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		path := filepath.Join(h.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename)))
		if err := c.SaveFile(fh, path); err != nil {
			h.discard(staged)
			return nil, apperror.Internal("", fmt.Errorf("stage %s: %w", field, err))
		}
		staged[field] = &services.LocalFile{
			Path:        path,
			FileName:    filepath.Base(fh.Filename),
			ContentType: fh.Header.Get(fiber.HeaderContentType),
		}
	}
	return staged, nil
}

func (h *BookHandler) discard(staged map[string]*services.LocalFile) {
	for _, f := range staged {
		if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("failed to delete staged upload", "path", f.Path, "error", err)
		}
	}
}

func isMultipart(c *fiber.Ctx) bool {
	return strings.HasPrefix(strings.ToLower(c.Get(fiber.HeaderContentType)), fiber.MIMEMultipartForm)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// optionalValue distinguishes an absent field from an empty one.
func optionalValue(form *multipart.Form, key string) *string {
	v, ok := form.Value[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}
