package lemystere

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/lemystere/markdown"
)

// dummyHash keeps the timing of unknown-email logins close to wrong-password ones.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("lemystere-dummy-password"), bcrypt.DefaultCost)

func (a *App) handleSession(c echo.Context) error {
	u, err := a.sessionUser(c)
	if err != nil {
		return err
	}
	info := SessionInfo{User: u}
	if u != nil {
		info.IsAdmin = u.IsAdmin
	}
	return c.JSON(http.StatusOK, info)
}

func (a *App) handleLogin(c echo.Context) error {
	ip := c.RealIP()
	if !a.loginLimiter.Check(ip) {
		return &APIError{Status: http.StatusTooManyRequests, Code: CodeRateLimited, Message: "Too many login attempts. Try again later."}
	}
	var creds Credentials
	if err := c.Bind(&creds); err != nil {
		return err
	}
	u, err := a.Store.GetUserByEmail(c.Request().Context(), creds.Email)
	if errors.Is(err, ErrNotFound) {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(creds.Password))
		a.loginLimiter.Record(ip)
		return ErrBadLogin
	}
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(creds.Password)); err != nil {
		a.loginLimiter.Record(ip)
		return ErrBadLogin
	}
	if err := setUserSession(c, u.ID); err != nil {
		return err
	}
	a.Logger.Info("signed in", "user", u.Email, "admin", u.IsAdmin)
	return c.JSON(http.StatusOK, SessionInfo{User: &u, IsAdmin: u.IsAdmin})
}

func (a *App) handleLogout(c echo.Context) error {
	if err := clearUserSession(c); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleCreateEvent(c echo.Context) error {
	var draft EventDraft
	if err := c.Bind(&draft); err != nil {
		return err
	}
	ev, err := draft.Event(a.Config.Location())
	if err != nil {
		return err
	}
	created, err := a.Store.CreateEvent(c.Request().Context(), ev)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (a *App) handleDeleteEvent(c echo.Context) error {
	if err := a.Store.DeleteEvent(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (a *App) handleCreatePost(c echo.Context) error {
	draft := NewPostDraft()
	if err := c.Bind(&draft); err != nil {
		return err
	}
	post, err := a.Store.CreatePost(c.Request().Context(), draft)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, post)
}

func (a *App) handleGetPostByID(c echo.Context) error {
	post, err := a.Store.GetPostByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleUpdatePost(c echo.Context) error {
	draft := NewPostDraft()
	if err := c.Bind(&draft); err != nil {
		return err
	}
	post, err := a.Store.UpdatePost(c.Request().Context(), c.Param("id"), draft)
	if err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, post)
}

func (a *App) handleDeletePost(c echo.Context) error {
	if err := a.Store.DeletePost(c.Request().Context(), c.Param("slug")); err != nil {
		return err
	}
	a.Cache.Invalidate()
	return c.NoContent(http.StatusNoContent)
}

// handlePreview renders draft Markdown to an HTML fragment. Nothing is stored.
func (a *App) handlePreview(c echo.Context) error {
	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil {
		return err
	}
	return Render(c, markdown.PreviewComponent(body.Content))
}
