package lemystere

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const welcomeContent = "# Welcome to Le Mystere\n\n" +
	"This is a **member-only** post.\n\n" +
	"## What’s inside\n" +
	"- Events calendar\n" +
	"- Private blog updates\n" +
	"- Booking (next)\n\n" +
	"```js\nconsole.log(\"Le Mystere\")\n```\n"

// seedEventID derives a stable id so reseeding never duplicates an event.
func seedEventID(title string, start time.Time) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("lemystere:event:"+title+"@"+formatTime(start))).String()
}

// Seed inserts the example events and the welcome post. Running it again
// leaves existing rows untouched. Zone-less seed times are read in loc.
func (s *Store) Seed(ctx context.Context, loc *time.Location) error {
	events := []EventDraft{
		{
			Title:       "Le Mystere — Winter Social",
			StartAt:     "2026-01-10T19:00:00",
			EndAt:       "2026-01-10T22:00:00",
			Location:    "Brooklyn, NY",
			Description: "Music • Networking • Refreshments. Dress code: Purple glow.",
			ImageURL:    "https://images.unsplash.com/photo-1520975661595-6453be3f7070?auto=format&fit=crop&w=1200&q=60",
		},
		{
			Title:       "Open Mic Night",
			StartAt:     "2026-01-24T20:00:00",
			EndAt:       "2026-01-24T23:00:00",
			Location:    "Queens, NY",
			Description: "Bring your talent. Family-friendly early set.",
			ImageURL:    "https://images.unsplash.com/photo-1521336575822-6da63fb45455?auto=format&fit=crop&w=1200&q=60",
		},
	}
	for _, d := range events {
		ev, err := d.Event(loc)
		if err != nil {
			return fmt.Errorf("seed event %q: %w", d.Title, err)
		}
		var endAt any
		if ev.EndAt != nil {
			endAt = formatTime(*ev.EndAt)
		}
		_, err = s.db.ExecContext(ctx, `INSERT OR IGNORE INTO events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			seedEventID(ev.Title, ev.StartAt), ev.Title, formatTime(ev.StartAt), endAt,
			nullString(ev.Location), nullString(ev.Description), nullString(ev.ImageURL),
			formatTime(s.timestamp()))
		if err != nil {
			return fmt.Errorf("seed event %q: %w", d.Title, err)
		}
	}

	now := formatTime(s.timestamp())
	_, err := s.db.ExecContext(ctx, `INSERT INTO posts (`+postColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT(slug) DO NOTHING`,
		uuid.NewString(), "welcome-to-le-mystere", "Welcome to Le Mystere",
		"Member-only updates, events, and announcements.",
		"https://images.unsplash.com/photo-1520975682031-a5ba29d1b4c7?auto=format&fit=crop&w=1200&q=60",
		welcomeContent, 1, now, now)
	if err != nil {
		return fmt.Errorf("seed welcome post: %w", err)
	}
	return nil
}
