package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eringen/lemystere"
)

type fakeIdentity struct {
	mu sync.Mutex
	id Identity
}

func (f *fakeIdentity) State() Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.id
}

func (f *fakeIdentity) set(id Identity) {
	f.mu.Lock()
	f.id = id
	f.mu.Unlock()
}

func admin() *fakeIdentity {
	return &fakeIdentity{id: Identity{Phase: PhaseAuthenticated, User: &lemystere.User{Email: "admin@example.com", IsAdmin: true}, IsAdmin: true}}
}

func member() *fakeIdentity {
	return &fakeIdentity{id: Identity{Phase: PhaseAuthenticated, User: &lemystere.User{Email: "member@example.com"}}}
}

type recordingUI struct {
	mu        sync.Mutex
	alerts    []string
	redirects []string
}

func (u *recordingUI) Alert(msg string) {
	u.mu.Lock()
	u.alerts = append(u.alerts, msg)
	u.mu.Unlock()
}

func (u *recordingUI) Redirect(path string) {
	u.mu.Lock()
	u.redirects = append(u.redirects, path)
	u.mu.Unlock()
}

// fakeStore implements EventStore and PostStore in memory and counts calls.
// When gate is non-nil every mutating call blocks until it is closed.
type fakeStore struct {
	mu      sync.Mutex
	calls   int
	events  []lemystere.Event
	posts   []lemystere.Post
	listErr error
	failAll error
	gate    chan struct{}
}

func (s *fakeStore) enter() {
	s.mu.Lock()
	s.calls++
	gate := s.gate
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

func (s *fakeStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *fakeStore) ListEvents(ctx context.Context) ([]lemystere.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]lemystere.Event(nil), s.events...), nil
}

func (s *fakeStore) CreateEvent(ctx context.Context, d lemystere.EventDraft) (lemystere.Event, error) {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return lemystere.Event{}, s.failAll
	}
	ev, err := d.Event(time.UTC)
	if err != nil {
		return lemystere.Event{}, err
	}
	ev.ID = uuid.NewString()
	ev.CreatedAt = time.Now()
	s.events = append(s.events, ev)
	return ev, nil
}

func (s *fakeStore) DeleteEvent(ctx context.Context, id string) error {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	for i, ev := range s.events {
		if ev.ID == id {
			s.events = append(s.events[:i], s.events[i+1:]...)
			return nil
		}
	}
	return lemystere.ErrNotFound
}

func (s *fakeStore) ListPosts(ctx context.Context) ([]lemystere.PostItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	items := make([]lemystere.PostItem, 0, len(s.posts))
	for _, p := range s.posts {
		items = append(items, p.Item())
	}
	return items, nil
}

func (s *fakeStore) CreatePost(ctx context.Context, d lemystere.PostDraft) (lemystere.Post, error) {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return lemystere.Post{}, s.failAll
	}
	for _, p := range s.posts {
		if p.Slug == d.Slug {
			return lemystere.Post{}, lemystere.ErrSlugConflict
		}
	}
	p := lemystere.Post{
		ID:        uuid.NewString(),
		Title:     d.Title,
		Slug:      d.Slug,
		Content:   d.Content,
		Published: d.Published,
		CreatedAt: time.Now(),
	}
	s.posts = append([]lemystere.Post{p}, s.posts...)
	return p, nil
}

func (s *fakeStore) GetPost(ctx context.Context, id string) (lemystere.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	for _, p := range s.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return lemystere.Post{}, lemystere.ErrNotFound
}

func (s *fakeStore) UpdatePost(ctx context.Context, id string, d lemystere.PostDraft) (lemystere.Post, error) {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return lemystere.Post{}, s.failAll
	}
	for _, p := range s.posts {
		if p.ID != id && p.Slug == d.Slug {
			return lemystere.Post{}, lemystere.ErrSlugConflict
		}
	}
	for i, p := range s.posts {
		if p.ID == id {
			p.Title, p.Slug, p.Content, p.Published = d.Title, d.Slug, d.Content, d.Published
			p.Excerpt = nonEmpty(d.Excerpt)
			p.CoverURL = nonEmpty(d.CoverURL)
			s.posts[i] = p
			return p, nil
		}
	}
	return lemystere.Post{}, lemystere.ErrNotFound
}

func (s *fakeStore) DeletePost(ctx context.Context, slug string) error {
	s.enter()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll != nil {
		return s.failAll
	}
	for i, p := range s.posts {
		if p.Slug == slug {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return nil
		}
	}
	return lemystere.ErrNotFound
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}
