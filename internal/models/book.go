package models

import "time"

// Book is a listing owned by the user that created it. CoverImage and File
// hold the asset references returned by the asset store.
type Book struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Title       string    `json:"title" gorm:"type:varchar(255);not null"`
	Description string    `json:"description,omitempty" gorm:"type:text"`
	Genre       string    `json:"genre" gorm:"type:varchar(100);not null"`
	AuthorID    string    `json:"author" gorm:"type:varchar(36);index;not null"`
	CoverImage  string    `json:"coverImage" gorm:"type:text;not null"`
	File        string    `json:"file" gorm:"type:text;not null"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Column names of the fields an update may write.
const (
	BookColumnTitle       = "title"
	BookColumnDescription = "description"
	BookColumnGenre       = "genre"
	BookColumnCoverImage  = "cover_image"
	BookColumnFile        = "file"
)

// BookPatch carries the scalar fields of a partial update. A nil field is
// left untouched.
type BookPatch struct {
	Title       *string
	Description *string
	Genre       *string
}

// Changes returns the present fields of p keyed by column name.
func (p BookPatch) Changes() map[string]any {
	changes := make(map[string]any, 3)
	if p.Title != nil {
		changes[BookColumnTitle] = *p.Title
	}
	if p.Description != nil {
		changes[BookColumnDescription] = *p.Description
	}
	if p.Genre != nil {
		changes[BookColumnGenre] = *p.Genre
	}
	return changes
}
