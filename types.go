package lemystere

import (
	"encoding/json"
	"time"
)

// Event is a community event shown on the calendar. Events are never edited
// in place; admins create and delete them.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	StartAt     time.Time  `json:"startAt"`
	EndAt       *time.Time `json:"endAt"`
	Location    *string    `json:"location"`
	Description *string    `json:"description"`
	ImageURL    *string    `json:"imageUrl"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Post is a Markdown blog post. Slug is the public lookup key, ID is used
// for admin edit routing.
type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Excerpt   *string   `json:"excerpt"`
	CoverURL  *string   `json:"coverUrl"`
	Content   string    `json:"content"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PostItem is the summary shape returned by the post listing.
type PostItem struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Slug      string    `json:"slug"`
	Excerpt   *string   `json:"excerpt"`
	CoverURL  *string   `json:"coverUrl"`
	Published bool      `json:"published"`
	CreatedAt time.Time `json:"createdAt"`
}

// Item returns the listing summary of p.
func (p Post) Item() PostItem {
	return PostItem{
		ID:        p.ID,
		Title:     p.Title,
		Slug:      p.Slug,
		Excerpt:   p.Excerpt,
		CoverURL:  p.CoverURL,
		Published: p.Published,
		CreatedAt: p.CreatedAt,
	}
}

// User is a signed-in member. Only admins may mutate content.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	IsAdmin      bool      `json:"isAdmin"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// SessionInfo is the body of GET /api/session.
type SessionInfo struct {
	User    *User `json:"user"`
	IsAdmin bool  `json:"isAdmin"`
}

// Credentials is the body of POST /api/session.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Upload describes a stored image returned by POST /api/uploads.
type Upload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Size     int    `json:"size"`
}

// EventDraft holds the create-event form values as typed by the admin.
// Timestamps are kept as text until the draft is submitted.
type EventDraft struct {
	Title       string `json:"title"`
	StartAt     string `json:"startAt"`
	EndAt       string `json:"endAt"`
	Location    string `json:"location"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// MarshalJSON encodes a blank EndAt as null.
func (d EventDraft) MarshalJSON() ([]byte, error) {
	type alias EventDraft
	var endAt *string
	if d.EndAt != "" {
		endAt = &d.EndAt
	}
	return json.Marshal(struct {
		alias
		EndAt *string `json:"endAt"`
	}{alias(d), endAt})
}

// PostDraft holds the create/edit post form values. Published defaults to
// true for new drafts.
type PostDraft struct {
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	Excerpt   string `json:"excerpt"`
	CoverURL  string `json:"coverUrl"`
	Content   string `json:"content"`
	Published bool   `json:"published"`
}

// NewPostDraft returns an empty draft with Published set.
func NewPostDraft() PostDraft {
	return PostDraft{Published: true}
}

// DraftFromPost copies the mutable fields of p into a draft.
func DraftFromPost(p Post) PostDraft {
	return PostDraft{
		Title:     p.Title,
		Slug:      p.Slug,
		Excerpt:   deref(p.Excerpt),
		CoverURL:  deref(p.CoverURL),
		Content:   p.Content,
		Published: p.Published,
	}
}

// WithTitle sets the title and, while the slug is still blank, derives a
// slug suggestion from it.
func (d PostDraft) WithTitle(title string) PostDraft {
	d.Title = title
	if d.Slug == "" {
		d.Slug = Slugify(title)
	}
	return d
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
