package workflow

import (
	"context"
	"slices"

	"github.com/eringen/lemystere"
)

// Events is the Manage Events screen.
type Events struct {
	gate
	store    EventStore
	events   []lemystere.Event
	draft    lemystere.EventDraft
	loadErr  error
	creating bool
	deleting map[string]bool
}

// NewEvents returns an Events workflow in StateLoading.
func NewEvents(ids IdentityProvider, ui UI, store EventStore) *Events {
	return &Events{
		gate:     gate{ids: ids, ui: ui},
		store:    store,
		deleting: make(map[string]bool),
	}
}

// Mount evaluates the identity gate and, for an admin, loads the event list.
// It is safe to call again whenever the identity may have resolved; calls
// after the first transition out of StateLoading do nothing.
func (w *Events) Mount(ctx context.Context) State {
	w.mu.Lock()
	load, redirect := w.admit()
	w.mu.Unlock()
	if redirect {
		w.redirectHome()
	}
	if !load {
		return w.State()
	}

	events, err := w.store.ListEvents(ctx)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.mounting = false
	w.loadErr = err
	if err != nil {
		events = nil
	}
	w.events = sortEvents(events)
	w.state = StateReady
	return w.state
}

// Events returns a copy of the held list, ordered by start time.
func (w *Events) Events() []lemystere.Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.events)
}

// LoadErr returns the error of the initial list load, if any.
func (w *Events) LoadErr() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.loadErr
}

// Draft returns the create form values.
func (w *Events) Draft() lemystere.EventDraft {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.draft
}

// SetDraft replaces the create form values.
func (w *Events) SetDraft(d lemystere.EventDraft) {
	w.mu.Lock()
	w.draft = d
	w.mu.Unlock()
}

// Creating reports whether a create call is in flight.
func (w *Events) Creating() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.creating
}

// CanCreate reports whether the create action is enabled: the screen is
// ready, no create is in flight and the draft passes local validation.
func (w *Events) CanCreate() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canCreate()
}

func (w *Events) canCreate() bool {
	return w.ready() && !w.creating && w.draft.Validate() == nil
}

// Create submits the draft. On success the new event is merged into the
// held list by start time and the draft is cleared. On failure the UI is
// alerted and the draft is kept.
func (w *Events) Create(ctx context.Context) bool {
	w.mu.Lock()
	if !w.canCreate() {
		w.mu.Unlock()
		return false
	}
	w.creating = true
	draft := w.draft.Normalize()
	w.mu.Unlock()

	ev, err := w.store.CreateEvent(ctx, draft)

	w.mu.Lock()
	w.creating = false
	if err != nil {
		w.mu.Unlock()
		w.ui.Alert("Not authorized or error creating event.")
		return false
	}
	w.events = sortEvents(append(w.events, ev))
	w.draft = lemystere.EventDraft{}
	w.mu.Unlock()
	return true
}

// Deleting reports whether a delete of id is in flight.
func (w *Events) Deleting(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.deleting[id]
}

// Delete removes the event with id. The held list only changes after the
// store confirms the delete.
func (w *Events) Delete(ctx context.Context, id string) bool {
	w.mu.Lock()
	if !w.ready() || w.deleting[id] {
		w.mu.Unlock()
		return false
	}
	w.deleting[id] = true
	w.mu.Unlock()

	err := w.store.DeleteEvent(ctx, id)

	w.mu.Lock()
	delete(w.deleting, id)
	if err != nil {
		w.mu.Unlock()
		w.ui.Alert("Not authorized or error deleting event.")
		return false
	}
	w.events = slices.DeleteFunc(w.events, func(ev lemystere.Event) bool { return ev.ID == id })
	w.mu.Unlock()
	return true
}

func sortEvents(events []lemystere.Event) []lemystere.Event {
	slices.SortStableFunc(events, func(a, b lemystere.Event) int {
		return a.StartAt.Compare(b.StartAt)
	})
	return events
}
