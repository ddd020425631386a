package lemystere

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func (a *App) handleListEvents(c echo.Context) error {
	events, err := a.Store.ListEvents(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}

// handleListPosts returns post summaries. Admins see drafts too; everyone
// else gets the cached published list.
func (a *App) handleListPosts(c echo.Context) error {
	ctx := c.Request().Context()
	var (
		posts []Post
		err   error
	)
	if a.isAdmin(c) {
		posts, err = a.Store.ListPosts(ctx, true)
	} else {
		posts, err = a.Cache.ListPosts(ctx)
	}
	if err != nil {
		return err
	}
	items := make([]PostItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, p.Item())
	}
	return c.JSON(http.StatusOK, items)
}

func (a *App) handleGetPost(c echo.Context) error {
	ctx := c.Request().Context()
	slug := c.Param("slug")
	var (
		post Post
		err  error
	)
	if a.isAdmin(c) {
		post, err = a.Store.GetPostBySlug(ctx, slug, true)
	} else {
		post, err = a.Cache.GetPost(ctx, slug)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleFeed(c echo.Context) error {
	posts, err := a.Cache.ListPosts(c.Request().Context())
	if err != nil {
		return err
	}
	return a.renderRSS(c, posts)
}
