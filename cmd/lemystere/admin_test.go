package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eringen/lemystere"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	app := lemystere.New(lemystere.SiteConfig{
		DatabasePath:  filepath.Join(dir, "test.db"),
		UploadDir:     filepath.Join(dir, "uploads"),
		SessionSecret: "0123456789abcdef0123456789abcdef",
		AdminEmail:    "admin@example.com",
		AdminPassword: "admin-password",
	}, lemystere.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, app.Setup(context.Background()))
	srv := httptest.NewServer(app.Echo)
	t.Cleanup(func() {
		srv.Close()
		app.Close()
	})
	return srv
}

func admin(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	base := []string{"-server", srv.URL, "-email", "admin@example.com", "-password", "admin-password"}
	err := runAdmin(append(base, args...), &out)
	return out.String(), err
}

func TestAdminEvents(t *testing.T) {
	srv := newTestServer(t)

	out, err := admin(t, srv, "events", "create", "-title", "Open Mic Night", "-start", "2026-01-24T20:00", "-location", "Queens, NY")
	require.NoError(t, err)
	assert.Contains(t, out, "Open Mic Night")
	assert.Contains(t, out, "Queens, NY")

	_, err = admin(t, srv, "events", "create", "-title", "No start")
	assert.ErrorContains(t, err, "invalid event")

	out, err = admin(t, srv, "events", "delete", "does-not-exist")
	assert.ErrorIs(t, err, errActionFailed)
	assert.Contains(t, out, "Not authorized or error deleting event.")
}

func TestAdminPosts(t *testing.T) {
	srv := newTestServer(t)
	md := filepath.Join(t.TempDir(), "post.md")
	require.NoError(t, os.WriteFile(md, []byte("# Hello\n\nFirst **post**."), 0o644))

	out, err := admin(t, srv, "posts", "create", "-title", "Hello World", "-content-file", md)
	require.NoError(t, err)
	assert.Contains(t, out, "hello-world")

	out, err = admin(t, srv, "posts", "create", "-title", "Hello World", "-content", "again")
	assert.ErrorIs(t, err, errActionFailed)
	assert.Contains(t, out, "That slug is already taken.")

	out, err = admin(t, srv, "posts", "preview", md)
	require.NoError(t, err)
	assert.Contains(t, out, "<strong>post</strong>")

	_, err = admin(t, srv, "posts", "edit", "abc", "-title", "x")
	assert.ErrorContains(t, err, "doesn't exist")

	out, err = admin(t, srv, "posts", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	fields := strings.Fields(lines[1])
	id := fields[len(fields)-1]

	out, err = admin(t, srv, "posts", "edit", id, "-publish=false")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved!")

	_, err = admin(t, srv, "posts", "delete", "hello-world")
	require.NoError(t, err)
}

func TestAdminRequiresLogin(t *testing.T) {
	srv := newTestServer(t)
	var out bytes.Buffer
	err := runAdmin([]string{"-server", srv.URL, "-email", "", "events", "list"}, &out)
	assert.ErrorContains(t, err, "not signed in")
	assert.Contains(t, out.String(), "redirect to /")

	err = runAdmin([]string{"-server", srv.URL, "-email", "", "upload", "x.png"}, &out)
	assert.ErrorContains(t, err, "not signed in")
}

func TestAdminUnknownArea(t *testing.T) {
	srv := newTestServer(t)
	_, err := admin(t, srv, "widgets")
	assert.ErrorContains(t, err, "unknown area")
}
