package domain

import (
	"errors"
	"strings"
	"time"
)

// Note is a private note owned by its author.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	AuthorID  string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Patch holds the fields of a partial update. Nil fields are left unchanged.
type Patch struct {
	Title   *string   `json:"title"`
	Content *string   `json:"content"`
	Tags    *[]string `json:"tags"`
}

// Validate returns an error describing the first invalid field.
func (n *Note) Validate() error {
	if l := len([]rune(n.Title)); l < 3 || l > 255 {
		return errors.New("title must be between 3 and 255 characters")
	}
	if len([]rune(n.Content)) < 3 {
		return errors.New("content must be at least 3 characters")
	}
	if n.AuthorID == "" {
		return errors.New("author is required")
	}
	return nil
}

// Apply copies the set fields of p onto n.
func (n *Note) Apply(p Patch) {
	if p.Title != nil {
		n.Title = strings.TrimSpace(*p.Title)
	}
	if p.Content != nil {
		n.Content = *p.Content
	}
	if p.Tags != nil {
		n.Tags = CleanTags(*p.Tags)
	}
}

// CleanTags trims tags and drops empty ones. A nil input yields an empty slice.
func CleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
