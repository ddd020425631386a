package lemystere

import (
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp accepts RFC 3339 timestamps and the zone-less
// "datetime-local" forms a browser form submits. Zone-less values are read
// in loc.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("must be a timestamp like 2026-01-24T20:00")
}

func isTimestamp(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return nil
	}
	_, err := ParseTimestamp(s, time.UTC)
	return err
}

// Normalize trims surrounding whitespace from every field.
func (d EventDraft) Normalize() EventDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.StartAt = strings.TrimSpace(d.StartAt)
	d.EndAt = strings.TrimSpace(d.EndAt)
	d.Location = strings.TrimSpace(d.Location)
	d.Description = strings.TrimSpace(d.Description)
	d.ImageURL = strings.TrimSpace(d.ImageURL)
	return d
}

// Validate checks the required fields and rejects an end before the start.
func (d EventDraft) Validate() error {
	d = d.Normalize()
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.StartAt, validation.Required, validation.By(isTimestamp)),
		validation.Field(&d.EndAt, validation.By(isTimestamp), validation.By(func(any) error {
			if d.EndAt == "" {
				return nil
			}
			start, err := ParseTimestamp(d.StartAt, time.UTC)
			if err != nil {
				return nil
			}
			end, err := ParseTimestamp(d.EndAt, time.UTC)
			if err != nil {
				return nil
			}
			if end.Before(start) {
				return errors.New("must not be before the start")
			}
			return nil
		})),
	)
}

// Event converts a validated draft into an Event. Zone-less timestamps are
// interpreted in loc.
func (d EventDraft) Event(loc *time.Location) (Event, error) {
	d = d.Normalize()
	if err := d.Validate(); err != nil {
		return Event{}, err
	}
	start, err := ParseTimestamp(d.StartAt, loc)
	if err != nil {
		return Event{}, err
	}
	ev := Event{
		Title:       d.Title,
		StartAt:     start.UTC(),
		Location:    optional(d.Location),
		Description: optional(d.Description),
		ImageURL:    optional(d.ImageURL),
	}
	if d.EndAt != "" {
		end, err := ParseTimestamp(d.EndAt, loc)
		if err != nil {
			return Event{}, err
		}
		end = end.UTC()
		ev.EndAt = &end
	}
	return ev, nil
}

// Normalize trims whitespace. Content is kept verbatim.
func (d PostDraft) Normalize() PostDraft {
	d.Title = strings.TrimSpace(d.Title)
	d.Slug = strings.TrimSpace(d.Slug)
	d.Excerpt = strings.TrimSpace(d.Excerpt)
	d.CoverURL = strings.TrimSpace(d.CoverURL)
	return d
}

// Validate checks the fields the form requires before it can be submitted.
func (d PostDraft) Validate() error {
	d = d.Normalize()
	return validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.Required),
		validation.Field(&d.Slug, validation.Required),
		validation.Field(&d.Content, validation.Required, validation.By(func(any) error {
			if strings.TrimSpace(d.Content) == "" {
				return errors.New("cannot be blank")
			}
			return nil
		})),
	)
}

// validateStored applies the stricter rules the server enforces: the slug
// must already be in slug form so it can be used as a path segment.
func (d PostDraft) validateStored() error {
	if err := d.Validate(); err != nil {
		return err
	}
	return validation.ValidateStruct(&d,
		validation.Field(&d.Slug, validation.Match(slugPattern).Error("may only contain a-z, 0-9 and '-'")),
	)
}

// ValidationFields flattens ozzo validation errors into field → message.
// It returns nil when err is not a validation error.
func ValidationFields(err error) map[string]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make(map[string]string, len(verrs))
	for k, v := range verrs {
		fields[k] = v.Error()
	}
	return fields
}

// IsValidationError reports whether err came from draft validation.
func IsValidationError(err error) bool {
	var verrs validation.Errors
	return errors.As(err, &verrs)
}
