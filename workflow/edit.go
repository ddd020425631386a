package workflow

import (
	"context"

	"github.com/eringen/lemystere"
	"github.com/eringen/lemystere/markdown"
)

// EditPost is the Edit Post screen for a single post addressed by id.
type EditPost struct {
	gate
	store  PostStore
	id     string
	post   lemystere.Post
	draft  lemystere.PostDraft
	saving bool
}

// NewEditPost returns an EditPost workflow for id in StateLoading.
func NewEditPost(ids IdentityProvider, ui UI, store PostStore, id string) *EditPost {
	return &EditPost{
		gate:  gate{ids: ids, ui: ui},
		store: store,
		id:    id,
	}
}

// Mount evaluates the identity gate and, for an admin, fetches the post.
// Any lookup failure ends in StateNotFound; Save is never reachable there.
func (w *EditPost) Mount(ctx context.Context) State {
	w.mu.Lock()
	load, redirect := w.admit()
	w.mu.Unlock()
	if redirect {
		w.redirectHome()
	}
	if !load {
		return w.State()
	}

	p, err := w.store.GetPost(ctx, w.id)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.mounting = false
	if err != nil {
		w.state = StateNotFound
		return w.state
	}
	w.post = p
	w.draft = lemystere.DraftFromPost(p)
	w.state = StateReady
	return w.state
}

// Post returns the post as last loaded or saved.
func (w *EditPost) Post() lemystere.Post {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.post
}

// Draft returns the edit form values.
func (w *EditPost) Draft() lemystere.PostDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// SetDraft replaces the edit form values. The slug is never re-derived
// while editing.
func (w *EditPost) SetDraft(d lemystere.PostDraft) {
	w.mu.Lock()
	w.draft = d
	w.mu.Unlock()
}

// Preview renders the draft content, or the placeholder while it is empty.
func (w *EditPost) Preview() (string, error) {
	return markdown.Preview(w.Draft().Content)
}

// Saving reports whether an update call is in flight.
func (w *EditPost) Saving() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saving
}

// CanSave reports whether the save action is enabled.
func (w *EditPost) CanSave() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canSave()
}

func (w *EditPost) canSave() bool {
	return w.ready() && !w.saving && w.draft.Validate() == nil
}

// Save sends the full draft as an update. The outcome is alerted either way
// and the workflow stays on the edit screen. Edits made while the update is
// in flight are kept; otherwise the draft is refreshed from the saved post.
func (w *EditPost) Save(ctx context.Context) bool {
	w.mu.Lock()
	if !w.canSave() {
		w.mu.Unlock()
		return false
	}
	w.saving = true
	sent := w.draft
	draft := sent.Normalize()
	w.mu.Unlock()

	p, err := w.store.UpdatePost(ctx, w.id, draft)

	w.mu.Lock()
	w.saving = false
	if err == nil {
		w.post = p
		if w.draft == sent {
			w.draft = lemystere.DraftFromPost(p)
		}
	}
	w.mu.Unlock()

	switch {
	case err == nil:
		w.ui.Alert("Saved!")
		return true
	case isConflict(err):
		w.ui.Alert(slugTakenMessage)
	default:
		w.ui.Alert("Error saving post.")
	}
	return false
}
