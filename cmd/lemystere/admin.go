package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/eringen/lemystere"
	"github.com/eringen/lemystere/client"
	"github.com/eringen/lemystere/workflow"
)

// errActionFailed is returned after the workflow has already alerted.
var errActionFailed = errors.New("action failed")

// consoleUI prints workflow alerts and redirects.
type consoleUI struct {
	w io.Writer
}

func (u consoleUI) Alert(msg string) {
	fmt.Fprintln(u.w, msg)
}

func (u consoleUI) Redirect(path string) {
	fmt.Fprintf(u.w, "Not signed in (redirect to %s).\n", path)
}

type adminCmd struct {
	out     io.Writer
	ui      consoleUI
	client  *client.Client
	session *client.Session
}

func runAdmin(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("admin", flag.ContinueOnError)
	fs.SetOutput(out)
	server := fs.String("server", lemystere.EnvOr("LEMYSTERE_SERVER", "http://localhost:3000"), "server base URL")
	email := fs.String("email", os.Getenv("LEMYSTERE_EMAIL"), "admin email")
	password := fs.String("password", os.Getenv("LEMYSTERE_PASSWORD"), "admin password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return errors.New("admin: missing area (events, posts, upload)")
	}

	ctx := context.Background()
	c, err := client.New(*server)
	if err != nil {
		return err
	}
	if *email != "" {
		if _, err := c.Login(ctx, *email, *password); err != nil {
			return fmt.Errorf("login: %w", err)
		}
	}
	sess := client.NewSession(c)
	if err := sess.Resolve(ctx); err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	cmd := &adminCmd{out: out, ui: consoleUI{w: out}, client: c, session: sess}
	switch rest[0] {
	case "events":
		return cmd.events(ctx, rest[1:])
	case "posts":
		return cmd.posts(ctx, rest[1:])
	case "upload":
		return cmd.upload(ctx, rest[1:])
	}
	return fmt.Errorf("admin: unknown area %q", rest[0])
}

func gateErr(s workflow.State) error {
	switch s {
	case workflow.StateReady:
		return nil
	case workflow.StateUnauthorized:
		return errors.New("not signed in: pass -email and -password")
	case workflow.StateForbidden:
		return errors.New("signed in, but this account is not an admin")
	case workflow.StateNotFound:
		return errors.New("this post doesn't exist")
	}
	return errors.New("session is still loading")
}

func splitAction(args []string, area string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, fmt.Errorf("admin %s: missing action", area)
	}
	return args[0], args[1:], nil
}

func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}

// --- events ---

func (a *adminCmd) events(ctx context.Context, args []string) error {
	action, args, err := splitAction(args, "events")
	if err != nil {
		return err
	}
	w := workflow.NewEvents(a.session, a.ui, a.client)
	if err := gateErr(w.Mount(ctx)); err != nil {
		return err
	}
	if err := w.LoadErr(); err != nil {
		fmt.Fprintf(a.out, "warning: could not load events: %v\n", err)
	}

	switch action {
	case "list":
		a.printEvents(w.Events())
		return nil
	case "create":
		fs := flag.NewFlagSet("events create", flag.ContinueOnError)
		fs.SetOutput(a.out)
		var d lemystere.EventDraft
		fs.StringVar(&d.Title, "title", "", "event title (required)")
		fs.StringVar(&d.StartAt, "start", "", "start, e.g. 2026-01-24T20:00 (required)")
		fs.StringVar(&d.EndAt, "end", "", "end (optional)")
		fs.StringVar(&d.Location, "location", "", "location")
		fs.StringVar(&d.Description, "description", "", "description")
		fs.StringVar(&d.ImageURL, "image", "", "image URL")
		if err := fs.Parse(args); err != nil {
			return err
		}
		w.SetDraft(d)
		if !w.CanCreate() {
			return fmt.Errorf("invalid event: %w", d.Validate())
		}
		if !w.Create(ctx) {
			return errActionFailed
		}
		a.printEvents(w.Events())
		return nil
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: admin events delete <id>")
		}
		if !w.Delete(ctx, args[0]) {
			return errActionFailed
		}
		fmt.Fprintf(a.out, "Deleted event %s\n", args[0])
		return nil
	}
	return fmt.Errorf("admin events: unknown action %q", action)
}

func (a *adminCmd) printEvents(events []lemystere.Event) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTART\tEND\tTITLE\tLOCATION")
	for _, ev := range events {
		end := "-"
		if ev.EndAt != nil {
			end = formatTime(*ev.EndAt)
		}
		loc := "-"
		if ev.Location != nil {
			loc = *ev.Location
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.ID, formatTime(ev.StartAt), end, ev.Title, loc)
	}
	tw.Flush()
}

// --- posts ---

func readContent(file, inline string) (string, error) {
	if file == "" {
		return inline, nil
	}
	b, err := os.ReadFile(file)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *adminCmd) posts(ctx context.Context, args []string) error {
	action, args, err := splitAction(args, "posts")
	if err != nil {
		return err
	}
	switch action {
	case "list", "create", "delete":
		return a.blog(ctx, action, args)
	case "edit":
		return a.editPost(ctx, args)
	case "preview":
		if len(args) != 1 {
			return errors.New("usage: admin posts preview <file.md>")
		}
		content, err := readContent(args[0], "")
		if err != nil {
			return err
		}
		html, err := a.client.Preview(ctx, content)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, html)
		return nil
	}
	return fmt.Errorf("admin posts: unknown action %q", action)
}

func (a *adminCmd) blog(ctx context.Context, action string, args []string) error {
	w := workflow.NewBlog(a.session, a.ui, a.client)
	if err := gateErr(w.Mount(ctx)); err != nil {
		return err
	}

	switch action {
	case "list":
		a.printPosts(w.Posts())
		return nil
	case "create":
		fs := flag.NewFlagSet("posts create", flag.ContinueOnError)
		fs.SetOutput(a.out)
		title := fs.String("title", "", "post title (required)")
		slug := fs.String("slug", "", "slug (default: derived from the title)")
		excerpt := fs.String("excerpt", "", "excerpt")
		cover := fs.String("cover", "", "cover image URL")
		contentFile := fs.String("content-file", "", "Markdown file")
		content := fs.String("content", "", "Markdown source (when no -content-file)")
		draft := fs.Bool("draft", false, "create unpublished")
		if err := fs.Parse(args); err != nil {
			return err
		}
		body, err := readContent(*contentFile, *content)
		if err != nil {
			return err
		}
		if *slug != "" {
			w.SetSlug(*slug)
		}
		w.SetTitle(*title)
		w.SetContent(body)
		d := w.Draft()
		d.Excerpt = *excerpt
		d.CoverURL = *cover
		d.Published = !*draft
		w.SetDraft(d)
		if !w.CanCreate() {
			return fmt.Errorf("invalid post: %w", d.Validate())
		}
		if !w.Create(ctx) {
			return errActionFailed
		}
		a.printPosts(w.Posts()[:1])
		return nil
	case "delete":
		if len(args) != 1 {
			return errors.New("usage: admin posts delete <slug>")
		}
		if !w.Delete(ctx, args[0]) {
			return errActionFailed
		}
		fmt.Fprintf(a.out, "Deleted post %s\n", args[0])
		return nil
	}
	return nil
}

func (a *adminCmd) editPost(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: admin posts edit <id> [flags]")
	}
	w := workflow.NewEditPost(a.session, a.ui, a.client, args[0])
	if err := gateErr(w.Mount(ctx)); err != nil {
		return err
	}

	d := w.Draft()
	fs := flag.NewFlagSet("posts edit", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.StringVar(&d.Title, "title", d.Title, "post title")
	fs.StringVar(&d.Slug, "slug", d.Slug, "slug")
	fs.StringVar(&d.Excerpt, "excerpt", d.Excerpt, "excerpt")
	fs.StringVar(&d.CoverURL, "cover", d.CoverURL, "cover image URL")
	fs.BoolVar(&d.Published, "publish", d.Published, "published")
	contentFile := fs.String("content-file", "", "replacement Markdown file")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *contentFile != "" {
		body, err := readContent(*contentFile, "")
		if err != nil {
			return err
		}
		d.Content = body
	}
	w.SetDraft(d)
	if !w.Save(ctx) {
		return errActionFailed
	}
	return nil
}

func (a *adminCmd) printPosts(posts []lemystere.PostItem) {
	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tPUBLISHED\tCREATED\tTITLE\tID")
	for _, p := range posts {
		fmt.Fprintf(tw, "%s\t%t\t%s\t%s\t%s\n", p.Slug, p.Published, formatTime(p.CreatedAt), p.Title, p.ID)
	}
	tw.Flush()
}

// --- uploads ---

func (a *adminCmd) upload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: admin upload <image>")
	}
	id := a.session.State()
	if err := gateErr(gateState(id)); err != nil {
		return err
	}
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()
	up, err := a.client.UploadImage(ctx, f.Name(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%s (%dx%d, %d bytes)\n", up.URL, up.Width, up.Height, up.Size)
	return nil
}

// gateState applies the admin gate to an identity outside a workflow.
func gateState(id workflow.Identity) workflow.State {
	switch {
	case id.Phase == workflow.PhaseUnresolved:
		return workflow.StateLoading
	case id.Phase == workflow.PhaseUnauthenticated:
		return workflow.StateUnauthorized
	case !id.IsAdmin:
		return workflow.StateForbidden
	}
	return workflow.StateReady
}
