// Package workflow holds the admin screens as small state machines. Each
// workflow gets its identity provider, store and UI injected; nothing is
// read from global state.
//
// A workflow starts in StateLoading. Mount evaluates the identity gate and,
// for an admin, loads the screen's data and moves to StateReady. List state
// is only changed by the workflow's own confirmed writes; it never refetches.
package workflow

import (
	"context"
	"errors"
	"sync"

	"github.com/eringen/lemystere"
)

// Phase is the resolution phase of the signed-in identity.
type Phase int

const (
	PhaseUnresolved Phase = iota
	PhaseAuthenticated
	PhaseUnauthenticated
)

func (p Phase) String() string {
	switch p {
	case PhaseAuthenticated:
		return "authenticated"
	case PhaseUnauthenticated:
		return "unauthenticated"
	}
	return "unresolved"
}

// Identity is a snapshot of the session as seen by a workflow.
type Identity struct {
	Phase   Phase
	User    *lemystere.User
	IsAdmin bool
}

// IdentityProvider exposes the asynchronously resolved session.
type IdentityProvider interface {
	State() Identity
}

// UI receives the side effects of a workflow.
type UI interface {
	// Alert shows a blocking notification.
	Alert(msg string)
	// Redirect navigates away from the admin screen.
	Redirect(path string)
}

// EventStore is the event half of the content store facade.
type EventStore interface {
	ListEvents(ctx context.Context) ([]lemystere.Event, error)
	CreateEvent(ctx context.Context, d lemystere.EventDraft) (lemystere.Event, error)
	DeleteEvent(ctx context.Context, id string) error
}

// PostStore is the post half of the content store facade. Posts are fetched
// and updated by id but deleted by slug.
type PostStore interface {
	ListPosts(ctx context.Context) ([]lemystere.PostItem, error)
	CreatePost(ctx context.Context, d lemystere.PostDraft) (lemystere.Post, error)
	GetPost(ctx context.Context, id string) (lemystere.Post, error)
	UpdatePost(ctx context.Context, id string, d lemystere.PostDraft) (lemystere.Post, error)
	DeletePost(ctx context.Context, slug string) error
}

// State is the screen state of a workflow.
type State int

const (
	StateLoading State = iota
	StateUnauthorized
	StateForbidden
	StateReady
	StateNotFound
)

func (s State) String() string {
	switch s {
	case StateUnauthorized:
		return "unauthorized"
	case StateForbidden:
		return "forbidden"
	case StateReady:
		return "ready"
	case StateNotFound:
		return "not found"
	}
	return "loading"
}

// HomePath is where unauthenticated visitors are sent.
const HomePath = "/"

const slugTakenMessage = "That slug is already taken."

// gate holds the state shared by every workflow. mu guards all workflow
// fields; it is never held across a store call or a UI callback.
type gate struct {
	mu       sync.Mutex
	ids      IdentityProvider
	ui       UI
	state    State
	mounting bool
}

// admit evaluates the identity gate. It reports load=true exactly once, when
// the caller should fetch its data, and redirect=true when the caller must
// send the visitor home after unlocking. The caller holds g.mu.
func (g *gate) admit() (load, redirect bool) {
	if g.state != StateLoading || g.mounting {
		return false, false
	}
	id := g.ids.State()
	switch id.Phase {
	case PhaseUnresolved:
		return false, false
	case PhaseUnauthenticated:
		g.state = StateUnauthorized
		return false, true
	}
	if !id.IsAdmin {
		g.state = StateForbidden
		return false, false
	}
	g.mounting = true
	return true, false
}

// State returns the current screen state.
func (g *gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *gate) redirectHome() {
	g.ui.Redirect(HomePath)
}

func (g *gate) ready() bool {
	return g.state == StateReady
}

func isConflict(err error) bool {
	return errors.Is(err, lemystere.ErrSlugConflict)
}
