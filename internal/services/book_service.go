package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"bookshelf/internal/apperror"
	"bookshelf/internal/assets"
	"bookshelf/internal/models"
	"bookshelf/internal/repositories"
	"bookshelf/internal/security"
	"bookshelf/pkg/rabbitmq"

	"golang.org/x/sync/errgroup"
)

const (
	msgUnauthorized       = "Unauthorized"
	msgBookNotFound       = "Book not found"
	msgUpdateForbidden    = "You can not update others book."
	msgDeleteForbidden    = "You can not delete others book."
	msgFilesRequired      = "Cover image and book file are required"
	msgTitleGenreRequired = "Title and genre are required"
	msgUploadFailed       = "Error while uploading file to asset store"
	msgTempCleanupFailed  = "Error while deleting temporary files"
	msgAssetDeleteFailed  = "Error while deleting the file from asset store"
	msgGetBookFailed      = "Error while getting a book"
	msgSaveBookFailed     = "Error while saving the book"
	msgDeleteBookFailed   = "Error while deleting the book"
)

// Reasons attached to asset removal requests.
const (
	reasonUploadFailed = "upload_failed"
	reasonCreateFailed = "create_failed"
	reasonUpdateFailed = "update_failed"
	reasonReplaced     = "replaced"
)

// RemovalPublisher hands asset removals to an out-of-band worker.
type RemovalPublisher interface {
	PublishAssetRemoval(ctx context.Context, msg rabbitmq.AssetRemoval) error
}

// LocalFile is a temporary upload on local disk. The service removes it
// before returning, whatever the outcome.
type LocalFile struct {
	Path        string
	FileName    string
	ContentType string
}

func (f *LocalFile) metadata() assets.Metadata {
	return assets.Metadata{FileName: f.FileName, ContentType: f.ContentType}
}

// CreateBookInput holds the fields of a new book and its two uploads.
type CreateBookInput struct {
	Title       string
	Description string
	Genre       string
	Cover       *LocalFile
	Content     *LocalFile
}

// UpdateBookInput holds a partial update. Nil files keep the current asset.
type UpdateBookInput struct {
	Patch   models.BookPatch
	Cover   *LocalFile
	Content *LocalFile
}

// BookService manages books and keeps their records consistent with the
// assets they reference.
type BookService struct {
	repo     repositories.BookRepository
	store    assets.Store
	removals RemovalPublisher
	logger   *slog.Logger
}

// NewBookService creates a new BookService. removals may be nil, in which
// case stale assets are removed inline.
func NewBookService(repo repositories.BookRepository, store assets.Store, removals RemovalPublisher, logger *slog.Logger) *BookService {
	if logger == nil {
		logger = slog.Default()
	}
	return &BookService{
		repo:     repo,
		store:    store,
		removals: removals,
		logger:   logger,
	}
}

// ListBooks returns every book.
func (s *BookService) ListBooks(ctx context.Context) ([]models.Book, error) {
	books, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, apperror.External(msgGetBookFailed, err)
	}
	return books, nil
}

// GetBook returns a single book.
func (s *BookService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NotFound(msgBookNotFound)
		}
		return nil, apperror.External(msgGetBookFailed, err)
	}
	return book, nil
}

// CreateBook uploads both assets, then persists the book owned by identity.
// If the record cannot be written the uploaded assets are removed again.
// A failure to delete the temporary files is reported after the book has
// been created; the book is returned alongside the error.
func (s *BookService) CreateBook(ctx context.Context, identity security.Identity, in CreateBookInput) (book *models.Book, err error) {
	defer func() {
		err = s.discardLocal(err, in.Cover, in.Content)
	}()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	if in.Cover == nil || in.Content == nil {
		return nil, apperror.Validation(msgFilesRequired)
	}
	in.Title, in.Genre = strings.TrimSpace(in.Title), strings.TrimSpace(in.Genre)
	if in.Title == "" || in.Genre == "" {
		return nil, apperror.Validation(msgTitleGenreRequired)
	}

	uploaded, err := s.upload(ctx,
		pendingUpload{file: in.Cover, kind: assets.KindImage},
		pendingUpload{file: in.Content, kind: assets.KindDocument},
	)
	if err != nil {
		return nil, err
	}

	book = &models.Book{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Genre:       in.Genre,
		AuthorID:    identity.UserID,
		CoverImage:  uploaded[assets.KindImage],
		File:        uploaded[assets.KindDocument],
	}
	if err := s.repo.Create(ctx, book); err != nil {
		s.compensate(ctx, reasonCreateFailed, uploaded)
		return nil, apperror.External(msgSaveBookFailed, err)
	}

	s.logger.Info("book created", "book_id", book.ID, "author_id", book.AuthorID)
	return book, nil
}

// UpdateBook applies a partial update to a book owned by identity. Each
// supplied file replaces its asset; the replaced object is removed once the
// record is saved.
func (s *BookService) UpdateBook(ctx context.Context, identity security.Identity, id string, in UpdateBookInput) (book *models.Book, err error) {
	defer func() {
		err = s.discardLocal(err, in.Cover, in.Content)
	}()

	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	book, err = s.findOwned(ctx, identity, id, msgUpdateForbidden)
	if err != nil {
		return nil, err
	}
	if err := validatePatch(in.Patch); err != nil {
		return nil, err
	}

	uploaded, err := s.upload(ctx,
		pendingUpload{file: in.Cover, kind: assets.KindImage},
		pendingUpload{file: in.Content, kind: assets.KindDocument},
	)
	if err != nil {
		return nil, err
	}

	// Only present fields and replaced references are written, so an
	// overlapping update of other fields survives.
	changes := in.Patch.Changes()
	if ref, ok := uploaded[assets.KindImage]; ok {
		changes[models.BookColumnCoverImage] = ref
	}
	if ref, ok := uploaded[assets.KindDocument]; ok {
		changes[models.BookColumnFile] = ref
	}
	if len(changes) == 0 {
		return book, nil
	}

	previous := book
	book, err = s.repo.UpdateFields(ctx, previous.ID, changes)
	if err != nil {
		s.compensate(ctx, reasonUpdateFailed, uploaded)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, apperror.NotFound(msgBookNotFound)
		}
		return nil, apperror.External(msgSaveBookFailed, err)
	}

	if _, ok := uploaded[assets.KindImage]; ok {
		s.retire(ctx, previous.CoverImage, assets.KindImage)
	}
	if _, ok := uploaded[assets.KindDocument]; ok {
		s.retire(ctx, previous.File, assets.KindDocument)
	}

	s.logger.Info("book updated", "book_id", book.ID, "replaced_assets", len(uploaded))
	return book, nil
}

// DeleteBook removes both assets and then the record. If either asset
// cannot be removed the record is kept so the delete can be retried.
func (s *BookService) DeleteBook(ctx context.Context, identity security.Identity, id string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	book, err := s.findOwned(ctx, identity, id, msgDeleteForbidden)
	if err != nil {
		return err
	}

	if err := s.store.Remove(ctx, book.CoverImage, assets.KindImage); err != nil {
		return apperror.External(msgAssetDeleteFailed, err)
	}
	if err := s.store.Remove(ctx, book.File, assets.KindDocument); err != nil {
		return apperror.External(msgAssetDeleteFailed, err)
	}

	if err := s.repo.Delete(ctx, book.ID); err != nil {
		// A concurrent delete of the same book got there first.
		if errors.Is(err, repositories.ErrNotFound) {
			s.logger.Debug("book already deleted", "book_id", book.ID)
			return nil
		}
		return apperror.External(msgDeleteBookFailed, err)
	}

	s.logger.Info("book deleted", "book_id", book.ID)
	return nil
}

func requireIdentity(identity security.Identity) error {
	if identity.Anonymous() {
		return apperror.Authentication(msgUnauthorized)
	}
	return nil
}

func validatePatch(p models.BookPatch) error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return apperror.Validation("Title can not be empty")
	}
	if p.Genre != nil && strings.TrimSpace(*p.Genre) == "" {
		return apperror.Validation("Genre can not be empty")
	}
	return nil
}

func (s *BookService) findOwned(ctx context.Context, identity security.Identity, id, forbidden string) (*models.Book, error) {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if book.AuthorID != identity.UserID {
		return nil, apperror.Forbidden(forbidden)
	}
	return book, nil
}

type pendingUpload struct {
	file *LocalFile
	kind assets.Kind
}

// upload puts the non-nil files concurrently and returns their references
// keyed by kind. On failure, whatever did upload is removed again.
func (s *BookService) upload(ctx context.Context, pending ...pendingUpload) (map[assets.Kind]string, error) {
	refs := make([]string, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range pending {
		if p.file == nil {
			continue
		}
		i, p := i, p
		g.Go(func() error {
			ref, err := s.store.Put(gctx, p.file.Path, p.kind, p.file.metadata())
			if err != nil {
				return fmt.Errorf("upload %s %q: %w", p.kind, p.file.FileName, err)
			}
			refs[i] = ref
			return nil
		})
	}
	err := g.Wait()

	uploaded := make(map[assets.Kind]string, len(pending))
	for i, ref := range refs {
		if ref != "" {
			uploaded[pending[i].kind] = ref
		}
	}
	if err != nil {
		s.compensate(ctx, reasonUploadFailed, uploaded)
		return nil, apperror.External(msgUploadFailed, err)
	}
	return uploaded, nil
}

// compensate removes assets uploaded by a step that later failed. Objects
// that cannot be removed are logged and queued for reconciliation.
func (s *BookService) compensate(ctx context.Context, reason string, uploaded map[assets.Kind]string) {
	ctx = context.WithoutCancel(ctx)
	for kind, ref := range uploaded {
		if err := s.store.Remove(ctx, ref, kind); err != nil {
			s.logger.Error("orphaned asset", "ref", ref, "kind", kind, "reason", reason, "error", err)
			s.publishRemoval(ctx, ref, kind, reason)
		}
	}
}

// retire removes an asset that is no longer referenced. It goes through the
// removal queue when one is configured and never fails the caller.
func (s *BookService) retire(ctx context.Context, ref string, kind assets.Kind) {
	ctx = context.WithoutCancel(ctx)
	if s.publishRemoval(ctx, ref, kind, reasonReplaced) {
		return
	}
	if err := s.store.Remove(ctx, ref, kind); err != nil {
		s.logger.Warn("failed to remove replaced asset", "ref", ref, "kind", kind, "error", err)
	}
}

func (s *BookService) publishRemoval(ctx context.Context, ref string, kind assets.Kind, reason string) bool {
	if s.removals == nil {
		return false
	}
	err := s.removals.PublishAssetRemoval(ctx, rabbitmq.AssetRemoval{
		Ref:    ref,
		Kind:   string(kind),
		Reason: reason,
	})
	if err != nil {
		s.logger.Error("failed to queue asset removal", "ref", ref, "kind", kind, "reason", reason, "error", err)
		return false
	}
	return true
}

// discardLocal deletes the temporary upload files. A cleanup failure only
// becomes the returned error when the operation itself succeeded.
func (s *BookService) discardLocal(err error, files ...*LocalFile) error {
	var cleanupErrs []error
	for _, f := range files {
		if f == nil || f.Path == "" {
			continue
		}
		if rmErr := os.Remove(f.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			cleanupErrs = append(cleanupErrs, rmErr)
		}
	}
	if len(cleanupErrs) == 0 {
		return err
	}

	cleanupErr := errors.Join(cleanupErrs...)
	s.logger.Error("failed to delete temporary files", "error", cleanupErr)
	if err != nil {
		return err
	}
	return apperror.External(msgTempCleanupFailed, cleanupErr)
}
