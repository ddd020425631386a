package workflow

import (
	"context"
	"slices"

	"github.com/eringen/lemystere"
	"github.com/eringen/lemystere/markdown"
)

// Blog is the Manage Blog screen: the post list and the create form.
type Blog struct {
	gate
	store    PostStore
	posts    []lemystere.PostItem
	draft    lemystere.PostDraft
	loadErr  error
	creating bool
	deleting map[string]bool
}

// NewBlog returns a Blog workflow in StateLoading with an empty, published
// draft.
func NewBlog(ids IdentityProvider, ui UI, store PostStore) *Blog {
	return &Blog{
		gate:     gate{ids: ids, ui: ui},
		store:    store,
		draft:    lemystere.NewPostDraft(),
		deleting: make(map[string]bool),
	}
}

// Mount evaluates the identity gate and, for an admin, loads the post list.
// A failed load leaves the list empty.
func (w *Blog) Mount(ctx context.Context) State {
	w.mu.Lock()
	load, redirect := w.admit()
	w.mu.Unlock()
	if redirect {
		w.redirectHome()
	}
	if !load {
		return w.State()
	}

	posts, err := w.store.ListPosts(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.mounting = false
	w.loadErr = err
	if err != nil {
		posts = nil
	}
	w.posts = posts
	w.state = StateReady
	return w.state
}

// Posts returns a copy of the held list in server order.
func (w *Blog) Posts() []lemystere.PostItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.posts)
}

// LoadErr returns the error of the initial list load, if any.
func (w *Blog) LoadErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadErr
}

// Draft returns the create form values.
func (w *Blog) Draft() lemystere.PostDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// SetDraft replaces the create form values.
func (w *Blog) SetDraft(d lemystere.PostDraft) {
	w.mu.Lock()
	w.draft = d
	w.mu.Unlock()
}

// SetTitle updates the title. While the slug is blank it is derived from
// the title; once set it is left alone.
func (w *Blog) SetTitle(title string) {
	w.mu.Lock()
	w.draft = w.draft.WithTitle(title)
	w.mu.Unlock()
}

// SetSlug overrides the derived slug.
func (w *Blog) SetSlug(slug string) {
	w.mu.Lock()
	w.draft.Slug = slug
	w.mu.Unlock()
}

// SetContent updates the Markdown source.
func (w *Blog) SetContent(content string) {
	w.mu.Lock()
	w.draft.Content = content
	w.mu.Unlock()
}

// Preview renders the draft content, or the placeholder while it is empty.
func (w *Blog) Preview() (string, error) {
	return markdown.Preview(w.Draft().Content)
}

// Creating reports whether a create call is in flight.
func (w *Blog) Creating() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.creating
}

// CanCreate reports whether the publish action is enabled.
func (w *Blog) CanCreate() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canCreate()
}

func (w *Blog) canCreate() bool {
	return w.ready() && !w.creating && w.draft.Validate() == nil
}

// Create submits the draft. The created post is prepended to the held list
// and the draft reset. A taken slug gets its own alert; any other failure
// the generic one. The draft is kept on failure.
func (w *Blog) Create(ctx context.Context) bool {
	w.mu.Lock()
	if !w.canCreate() {
		w.mu.Unlock()
		return false
	}
	w.creating = true
	draft := w.draft.Normalize()
	w.mu.Unlock()

	p, err := w.store.CreatePost(ctx, draft)

	w.mu.Lock()
	w.creating = false
	if err != nil {
		w.mu.Unlock()
		if isConflict(err) {
			w.ui.Alert(slugTakenMessage)
		} else {
			w.ui.Alert("Not authorized or error creating post.")
		}
		return false
	}
	w.posts = slices.Insert(w.posts, 0, p.Item())
	w.draft = lemystere.NewPostDraft()
	w.mu.Unlock()
	return true
}

// Deleting reports whether a delete of slug is in flight.
func (w *Blog) Deleting(slug string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deleting[slug]
}

// Delete removes the post with slug after the store confirms it.
func (w *Blog) Delete(ctx context.Context, slug string) bool {
	w.mu.Lock()
	if !w.ready() || w.deleting[slug] {
		w.mu.Unlock()
		return false
	}
	w.deleting[slug] = true
	w.mu.Unlock()

	err := w.store.DeletePost(ctx, slug)

	w.mu.Lock()
	delete(w.deleting, slug)
	if err != nil {
		w.mu.Unlock()
		w.ui.Alert("Not authorized or error deleting post.")
		return false
	}
	w.posts = slices.DeleteFunc(w.posts, func(p lemystere.PostItem) bool { return p.Slug == slug })
	w.mu.Unlock()
	return true
}
