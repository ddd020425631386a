package lemystere

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	now := start
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func TestNewStore(t *testing.T) {
	s := setupTestStore(t)
	if s.db == nil {
		t.Fatal("db should not be nil")
	}
	// Schema creation is idempotent.
	if err := s.ensureSchema(); err != nil {
		t.Fatalf("ensureSchema again: %v", err)
	}
}

func TestCreateAndListEvents(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	late := Event{Title: "Open Mic Night", StartAt: time.Date(2026, 1, 24, 20, 0, 0, 0, time.UTC)}
	end := time.Date(2026, 1, 10, 22, 0, 0, 0, time.UTC)
	early := Event{
		Title:    "Winter Social",
		StartAt:  time.Date(2026, 1, 10, 19, 0, 0, 0, time.UTC),
		EndAt:    &end,
		Location: optional("Brooklyn, NY"),
	}

	created, err := s.CreateEvent(ctx, late)
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if created.ID == "" {
		t.Error("expected an assigned id")
	}
	if created.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}
	if _, err := s.CreateEvent(ctx, early); err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Title != "Winter Social" || events[1].Title != "Open Mic Night" {
		t.Errorf("events not ordered by start: %q, %q", events[0].Title, events[1].Title)
	}
	if events[0].EndAt == nil || !events[0].EndAt.Equal(end) {
		t.Errorf("EndAt = %v, want %v", events[0].EndAt, end)
	}
	if events[1].EndAt != nil {
		t.Errorf("EndAt = %v, want nil", events[1].EndAt)
	}
	if deref(events[0].Location) != "Brooklyn, NY" {
		t.Errorf("Location = %q", deref(events[0].Location))
	}
	if events[1].Location != nil {
		t.Errorf("Location = %q, want nil", *events[1].Location)
	}

	got, err := s.GetEvent(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetEvent failed: %v", err)
	}
	if !got.StartAt.Equal(late.StartAt) {
		t.Errorf("StartAt = %v, want %v", got.StartAt, late.StartAt)
	}
}

func TestDeleteEvent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	ev, err := s.CreateEvent(ctx, Event{Title: "Gone Soon", StartAt: time.Now()})
	if err != nil {
		t.Fatalf("CreateEvent failed: %v", err)
	}
	if err := s.DeleteEvent(ctx, ev.ID); err != nil {
		t.Fatalf("DeleteEvent failed: %v", err)
	}
	if err := s.DeleteEvent(ctx, ev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteEvent err = %v, want ErrNotFound", err)
	}
	if _, err := s.GetEvent(ctx, ev.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetEvent err = %v, want ErrNotFound", err)
	}
}

func TestCreateAndGetPost(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	draft := PostDraft{
		Title:     "Test Post",
		Excerpt:   "A test post summary",
		Content:   "# Test Content\n\nThis is test content.",
		Published: true,
	}
	p, err := s.CreatePost(ctx, draft)
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if p.Slug != "test-post" {
		t.Errorf("Slug = %q, want derived %q", p.Slug, "test-post")
	}

	got, err := s.GetPostBySlug(ctx, "test-post", false)
	if err != nil {
		t.Fatalf("GetPostBySlug failed: %v", err)
	}
	if got.ID != p.ID {
		t.Errorf("ID = %q, want %q", got.ID, p.ID)
	}
	if got.Content != draft.Content {
		t.Errorf("Content = %q, want %q", got.Content, draft.Content)
	}
	if deref(got.Excerpt) != draft.Excerpt {
		t.Errorf("Excerpt = %q, want %q", deref(got.Excerpt), draft.Excerpt)
	}
	if got.CoverURL != nil {
		t.Errorf("CoverURL = %q, want nil", *got.CoverURL)
	}

	byID, err := s.GetPostByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPostByID failed: %v", err)
	}
	if byID.Slug != p.Slug {
		t.Errorf("Slug = %q, want %q", byID.Slug, p.Slug)
	}
}

func TestCreatePostSlugConflictKeepsExisting(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	first, err := s.CreatePost(ctx, PostDraft{Title: "Original", Slug: "same", Content: "original body", Published: true})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	_, err = s.CreatePost(ctx, PostDraft{Title: "Impostor", Slug: "same", Content: "other body", Published: true})
	if !errors.Is(err, ErrSlugConflict) {
		t.Fatalf("err = %v, want ErrSlugConflict", err)
	}

	got, err := s.GetPostBySlug(ctx, "same", true)
	if err != nil {
		t.Fatalf("GetPostBySlug failed: %v", err)
	}
	if got.ID != first.ID || got.Title != "Original" || got.Content != "original body" {
		t.Errorf("existing post was altered: %+v", got)
	}

	posts, err := s.ListPosts(ctx, true)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 1 {
		t.Errorf("len(posts) = %d, want 1", len(posts))
	}
}

func TestCreatePostRejectsBadSlug(t *testing.T) {
	s := setupTestStore(t)
	_, err := s.CreatePost(context.Background(), PostDraft{Title: "Bad", Slug: "Not A Slug", Content: "x"})
	if !IsValidationError(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
	if _, ok := ValidationFields(err)["slug"]; !ok {
		t.Errorf("fields = %v, want slug", ValidationFields(err))
	}
}

func TestListPostsNewestFirstAndDrafts(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	s.now = stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	for _, d := range []PostDraft{
		{Title: "First", Content: "1", Published: true},
		{Title: "Second", Content: "2", Published: false},
		{Title: "Third", Content: "3", Published: true},
	} {
		if _, err := s.CreatePost(ctx, d); err != nil {
			t.Fatalf("CreatePost(%q) failed: %v", d.Title, err)
		}
	}

	published, err := s.ListPosts(ctx, false)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(published) != 2 || published[0].Slug != "third" || published[1].Slug != "first" {
		t.Errorf("published = %v", slugs(published))
	}

	all, err := s.ListPosts(ctx, true)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(all) != 3 || all[1].Slug != "second" {
		t.Errorf("all = %v", slugs(all))
	}

	if _, err := s.GetPostBySlug(ctx, "second", false); !errors.Is(err, ErrNotFound) {
		t.Errorf("draft visible without includeDrafts: err = %v", err)
	}
}

func TestUpdatePost(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	s.now = stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))

	p, err := s.CreatePost(ctx, PostDraft{Title: "Draft", Content: "v1", Published: true})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	other, err := s.CreatePost(ctx, PostDraft{Title: "Other", Content: "x", Published: true})
	if err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}

	d := DraftFromPost(p)
	d.Title = "Final"
	d.Slug = "final"
	d.Content = "v2"
	d.CoverURL = "/uploads/cover.jpg"
	d.Published = false
	updated, err := s.UpdatePost(ctx, p.ID, d)
	if err != nil {
		t.Fatalf("UpdatePost failed: %v", err)
	}
	if updated.Slug != "final" || updated.Content != "v2" || updated.Published {
		t.Errorf("updated = %+v", updated)
	}
	if deref(updated.CoverURL) != "/uploads/cover.jpg" {
		t.Errorf("CoverURL = %q", deref(updated.CoverURL))
	}
	if !updated.CreatedAt.Equal(p.CreatedAt) {
		t.Errorf("CreatedAt changed: %v -> %v", p.CreatedAt, updated.CreatedAt)
	}
	if !updated.UpdatedAt.After(p.UpdatedAt) {
		t.Errorf("UpdatedAt not advanced: %v", updated.UpdatedAt)
	}

	d.Slug = other.Slug
	if _, err := s.UpdatePost(ctx, p.ID, d); !errors.Is(err, ErrSlugConflict) {
		t.Errorf("err = %v, want ErrSlugConflict", err)
	}
	if _, err := s.UpdatePost(ctx, "missing", DraftFromPost(other)); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	if _, err := s.CreatePost(ctx, PostDraft{Title: "Bye", Content: "x", Published: true}); err != nil {
		t.Fatalf("CreatePost failed: %v", err)
	}
	if err := s.DeletePost(ctx, "bye"); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}
	if err := s.DeletePost(ctx, "bye"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpsertUser(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	u, err := s.UpsertUser(ctx, User{Email: " Admin@Example.com ", Name: "A", PasswordHash: []byte("h1")})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if u.Email != "admin@example.com" || u.IsAdmin {
		t.Errorf("user = %+v", u)
	}

	again, err := s.UpsertUser(ctx, User{Email: "admin@example.com", Name: "B", IsAdmin: true, PasswordHash: []byte("h2")})
	if err != nil {
		t.Fatalf("UpsertUser failed: %v", err)
	}
	if again.ID != u.ID {
		t.Errorf("ID changed on upsert: %q -> %q", u.ID, again.ID)
	}
	if !again.IsAdmin || string(again.PasswordHash) != "h2" || again.Name != "B" {
		t.Errorf("user not updated: %+v", again)
	}

	byID, err := s.GetUserByID(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Email != "admin@example.com" {
		t.Errorf("Email = %q", byID.Email)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if _, err := s.UpsertUser(ctx, User{Email: "x@example.com"}); err == nil {
		t.Error("expected error for missing password hash")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	for i := 0; i < 2; i++ {
		if err := s.Seed(ctx, time.UTC); err != nil {
			t.Fatalf("Seed #%d failed: %v", i+1, err)
		}
	}

	events, err := s.ListEvents(ctx)
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Title != "Le Mystere — Winter Social" {
		t.Errorf("first event = %q", events[0].Title)
	}

	posts, err := s.ListPosts(ctx, true)
	if err != nil {
		t.Fatalf("ListPosts failed: %v", err)
	}
	if len(posts) != 1 || posts[0].Slug != "welcome-to-le-mystere" {
		t.Fatalf("posts = %v", slugs(posts))
	}
	if !posts[0].Published {
		t.Error("welcome post should be published")
	}
}

func slugs(posts []Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Slug)
	}
	return out
}
