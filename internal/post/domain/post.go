package domain

import (
	"errors"
	"strings"
	"time"
)

// Post is a public blog post. Only its author may change it.
type Post struct {
	ID          string    `json:"id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	AuthorID    string    `json:"author"`
	Likes       int64     `json:"likes"`
	Views       int64     `json:"views"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Patch holds the fields of a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title"`
	Content     *string   `json:"content"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

// Validate returns an error describing the first invalid field.
func (p *Post) Validate() error {
	if l := len([]rune(p.Title)); l < 3 || l > 128 {
		return errors.New("title must be between 3 and 128 characters")
	}
	if len([]rune(p.Content)) < 3 {
		return errors.New("content must be at least 3 characters")
	}
	if l := len([]rune(p.Description)); l < 3 || l > 280 {
		return errors.New("description must be between 3 and 280 characters")
	}
	if p.Slug == "" || len(p.Slug) > maxSlugLen {
		return errors.New("slug is invalid")
	}
	if p.AuthorID == "" {
		return errors.New("author is required")
	}
	return nil
}

// Apply copies the set fields of patch onto p and reports whether the title changed.
func (p *Post) Apply(patch Patch) (titleChanged bool) {
	if patch.Title != nil {
		t := strings.TrimSpace(*patch.Title)
		titleChanged = t != p.Title
		p.Title = t
	}
	if patch.Content != nil {
		p.Content = *patch.Content
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Tags != nil {
		p.Tags = CleanTags(*patch.Tags)
	}
	return titleChanged
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
