// Package assets stores book covers and content files in an external object
// store. Objects are addressed by references (URLs) of the form
// <base>/<folder>/<name>.<ext>; the folder is fixed per asset kind.
package assets

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Kind is the category of an asset. It selects the folder and the default format.
type Kind string

const (
	KindImage    Kind = "image"
	KindDocument Kind = "document"
)

const (
	coverFolder    = "book-covers"
	documentFolder = "book-pdfs"
)

// ErrInvalidRef is returned when a reference cannot be mapped back to an
// object of the expected kind.
var ErrInvalidRef = errors.New("invalid asset reference")

// Folder returns the namespace objects of this kind are stored under.
func (k Kind) Folder() string {
	switch k {
	case KindImage:
		return coverFolder
	case KindDocument:
		return documentFolder
	default:
		return ""
	}
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k.Folder() != ""
}

// Metadata describes a local file being uploaded.
type Metadata struct {
	FileName    string
	ContentType string
}

// Store uploads local files and removes previously uploaded objects.
// Put is not retried internally. Remove treats a missing object as success.
type Store interface {
	Put(ctx context.Context, localPath string, kind Kind, meta Metadata) (string, error)
	Remove(ctx context.Context, ref string, kind Kind) error
}

// Format returns the file extension declared for an upload: the MIME subtype
// when one is given, the original file extension otherwise, falling back to
// jpg for images and pdf for documents.
func Format(kind Kind, meta Metadata) string {
	if mediaType, _, err := mime.ParseMediaType(meta.ContentType); err == nil {
		if _, sub, ok := strings.Cut(mediaType, "/"); ok && sub != "" && sub != "octet-stream" {
			switch sub {
			case "jpeg":
				return "jpg"
			case "svg+xml":
				return "svg"
			}
			return sub
		}
	}
	if ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(meta.FileName)), "."); ext != "" {
		return ext
	}
	if kind == KindImage {
		return "jpg"
	}
	return "pdf"
}

// ObjectName builds a fresh, collision-free object key for an upload.
func ObjectName(kind Kind, meta Metadata) string {
	return kind.Folder() + "/" + uuid.New().String() + "." + Format(kind, meta)
}

// ObjectKey reverses the naming scheme: it extracts "<folder>/<name>.<ext>"
// from ref and checks the folder belongs to kind.
func ObjectKey(ref string, kind Kind) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRef, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	folder, base := segments[len(segments)-2], segments[len(segments)-1]
	if folder != kind.Folder() || base == "" {
		return "", fmt.Errorf("%w: %q is not a %s asset", ErrInvalidRef, ref, kind)
	}
	return folder + "/" + base, nil
}

func joinRef(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + key
}
