package lemystere

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z07:00"

// Store wraps a SQLite database and provides CRUD operations for events,
// posts and users.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens (or creates) the SQLite database at path, ensures the data
// directory exists, and runs schema migrations.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	// Pragmas go in the DSN so every pooled connection gets them: WAL for
	// concurrent readers, a busy timeout so writers wait instead of failing
	// with SQLITE_BUSY, and synchronous=NORMAL which is safe under WAL.
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	db, err := sql.Open("sqlite", "file:"+path+"?"+q.Encode())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	s := newStoreWithDB(db)
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func newStoreWithDB(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    start_at TEXT NOT NULL,
    end_at TEXT,
    location TEXT,
    description TEXT,
    image_url TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS events_start_at ON events (start_at);

CREATE TABLE IF NOT EXISTS posts (
    id TEXT PRIMARY KEY,
    slug TEXT NOT NULL UNIQUE,
    title TEXT NOT NULL,
    excerpt TEXT,
    cover_url TEXT,
    content TEXT NOT NULL,
    published INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL DEFAULT '',
    password_hash BLOB NOT NULL,
    is_admin INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL
);
`)
	return err
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return time.Parse(time.RFC3339Nano, v)
	}
	return t, nil
}

func nullString(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *p, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// --- Events ---

const eventColumns = `id, title, start_at, end_at, location, description, image_url, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (Event, error) {
	var (
		ev                              Event
		startAt, createdAt              string
		endAt, location, desc, imageURL sql.NullString
	)
	if err := row.Scan(&ev.ID, &ev.Title, &startAt, &endAt, &location, &desc, &imageURL, &createdAt); err != nil {
		return Event{}, err
	}
	var err error
	if ev.StartAt, err = parseTime(startAt); err != nil {
		return Event{}, fmt.Errorf("event %s start_at: %w", ev.ID, err)
	}
	if ev.CreatedAt, err = parseTime(createdAt); err != nil {
		return Event{}, fmt.Errorf("event %s created_at: %w", ev.ID, err)
	}
	if endAt.Valid {
		t, err := parseTime(endAt.String)
		if err != nil {
			return Event{}, fmt.Errorf("event %s end_at: %w", ev.ID, err)
		}
		ev.EndAt = &t
	}
	ev.Location = stringPtr(location)
	ev.Description = stringPtr(desc)
	ev.ImageURL = stringPtr(imageURL)
	return ev, nil
}

// ListEvents returns every event ordered by start time ascending.
func (s *Store) ListEvents(ctx context.Context) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY start_at ASC, created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make([]Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// GetEvent returns a single event by id.
func (s *Store) GetEvent(ctx context.Context, id string) (Event, error) {
	ev, err := scanEvent(s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	return ev, err
}

// CreateEvent stores ev, assigning its ID (when blank) and CreatedAt.
func (s *Store) CreateEvent(ctx context.Context, ev Event) (Event, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ev.CreatedAt = s.timestamp()
	var endAt sql.NullString
	if ev.EndAt != nil {
		endAt = sql.NullString{String: formatTime(*ev.EndAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Title, formatTime(ev.StartAt), endAt,
		nullString(ev.Location), nullString(ev.Description), nullString(ev.ImageURL),
		formatTime(ev.CreatedAt))
	if err != nil {
		return Event{}, err
	}
	return ev, nil
}

// DeleteEvent removes an event by id. It returns ErrNotFound when no row
// matched.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Posts ---

const postColumns = `id, slug, title, excerpt, cover_url, content, published, created_at, updated_at`

func scanPost(row rowScanner) (Post, error) {
	var (
		p                    Post
		excerpt, coverURL    sql.NullString
		published            int
		createdAt, updatedAt string
	)
	if err := row.Scan(&p.ID, &p.Slug, &p.Title, &excerpt, &coverURL, &p.Content, &published, &createdAt, &updatedAt); err != nil {
		return Post{}, err
	}
	var err error
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return Post{}, fmt.Errorf("post %s created_at: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Post{}, fmt.Errorf("post %s updated_at: %w", p.ID, err)
	}
	p.Excerpt = stringPtr(excerpt)
	p.CoverURL = stringPtr(coverURL)
	p.Published = published == 1
	return p, nil
}

// ListPosts returns posts newest first. Drafts are included only when
// includeDrafts is set.
func (s *Store) ListPosts(ctx context.Context, includeDrafts bool) ([]Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE published = 1 ORDER BY created_at DESC, rowid DESC`
	if includeDrafts {
		query = `SELECT ` + postColumns + ` FROM posts ORDER BY created_at DESC, rowid DESC`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]Post, 0)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

// GetPostByID returns a post by id regardless of published status.
func (s *Store) GetPostByID(ctx context.Context, id string) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Post{}, ErrNotFound
	}
	return p, err
}

// GetPostBySlug returns a post by slug. Unpublished posts are reported as
// ErrNotFound unless includeDrafts is set.
func (s *Store) GetPostBySlug(ctx context.Context, slug string, includeDrafts bool) (Post, error) {
	p, err := scanPost(s.db.QueryRowContext(ctx, `SELECT `+postColumns+` FROM posts WHERE slug = ?`, slug))
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !p.Published && !includeDrafts) {
		return Post{}, ErrNotFound
	}
	return p, err
}

// CreatePost inserts a new post from d. A blank slug is derived from the
// title. A slug already in use yields ErrSlugConflict.
func (s *Store) CreatePost(ctx context.Context, d PostDraft) (Post, error) {
	d = d.Normalize()
	if d.Slug == "" {
		d.Slug = Slugify(d.Title)
	}
	if err := d.validateStored(); err != nil {
		return Post{}, err
	}
	now := s.timestamp()
	p := Post{
		ID:        uuid.NewString(),
		Title:     d.Title,
		Slug:      d.Slug,
		Excerpt:   optional(d.Excerpt),
		CoverURL:  optional(d.CoverURL),
		Content:   d.Content,
		Published: d.Published,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Slug, p.Title, nullString(p.Excerpt), nullString(p.CoverURL), p.Content,
		boolInt(p.Published), formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return Post{}, ErrSlugConflict
		}
		return Post{}, err
	}
	return p, nil
}

// UpdatePost replaces the mutable fields of the post with the given id.
func (s *Store) UpdatePost(ctx context.Context, id string, d PostDraft) (Post, error) {
	d = d.Normalize()
	if err := d.validateStored(); err != nil {
		return Post{}, err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE posts SET slug = ?, title = ?, excerpt = ?, cover_url = ?, content = ?, published = ?, updated_at = ? WHERE id = ?`,
		d.Slug, d.Title, nullString(optional(d.Excerpt)), nullString(optional(d.CoverURL)), d.Content,
		boolInt(d.Published), formatTime(s.timestamp()), id)
	if err != nil {
		if isUniqueViolation(err) {
			return Post{}, ErrSlugConflict
		}
		return Post{}, err
	}
	if err := expectAffected(res); err != nil {
		return Post{}, err
	}
	return s.GetPostByID(ctx, id)
}

// DeletePost removes a post by slug.
func (s *Store) DeletePost(ctx context.Context, slug string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE slug = ?`, slug)
	if err != nil {
		return err
	}
	return expectAffected(res)
}

// --- Users ---

const userColumns = `id, email, name, password_hash, is_admin, created_at`

func scanUser(row rowScanner) (User, error) {
	var (
		u         User
		isAdmin   int
		createdAt string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &isAdmin, &createdAt); err != nil {
		return User{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return User{}, fmt.Errorf("user %s created_at: %w", u.ID, err)
	}
	u.CreatedAt = t
	u.IsAdmin = isAdmin == 1
	return u, nil
}

// GetUserByID returns a user by id.
func (s *Store) GetUserByID(ctx context.Context, id string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// GetUserByEmail returns a user by (case-insensitive) email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

// UpsertUser creates the user or, when the email exists, replaces its
// name, password hash and admin flag. The stored row is returned.
func (s *Store) UpsertUser(ctx context.Context, u User) (User, error) {
	u.Email = normalizeEmail(u.Email)
	if u.Email == "" {
		return User{}, errors.New("lemystere: user email is required")
	}
	if len(u.PasswordHash) == 0 {
		return User{}, errors.New("lemystere: user password hash is required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(email) DO UPDATE SET name = excluded.name, password_hash = excluded.password_hash, is_admin = excluded.is_admin`,
		uuid.NewString(), u.Email, u.Name, u.PasswordHash, boolInt(u.IsAdmin), formatTime(s.timestamp()))
	if err != nil {
		return User{}, err
	}
	return s.GetUserByEmail(ctx, u.Email)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
