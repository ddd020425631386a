// Package lemystere is the server side of the Le Mystere member community:
// a JSON API for events and Markdown blog posts, cookie sessions with an
// admin capability, and a SQLite content store.
//
// The admin tooling that drives this API lives in the workflow and client
// packages.
package lemystere

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"
)

// App is the central server application. It wires together the store,
// cache, handlers and middleware.
type App struct {
	Config SiteConfig
	Echo   *echo.Echo
	Store  *Store
	Cache  *PostCache
	Logger *slog.Logger

	loginLimiter  *LoginLimiter
	externalStore bool
	ready         bool
}

// New creates an App with the given configuration. Call Setup (or Start)
// before serving.
func New(cfg SiteConfig, opts ...Option) *App {
	cfg.setDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	a := &App{
		Config: cfg,
		Echo:   e,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.Logger == nil {
		a.Logger = NewLogger(cfg.Environment, cfg.LogLevel)
	}
	return a
}

// Setup validates the configuration, opens the store, bootstraps the admin
// account and registers middleware and routes. Calling it again is a no-op.
func (a *App) Setup(ctx context.Context) error {
	if a.ready {
		return nil
	}
	if err := a.Config.validate(); err != nil {
		return err
	}

	if a.Store == nil {
		store, err := NewStore(a.Config.DatabasePath)
		if err != nil {
			return fmt.Errorf("lemystere: init store: %w", err)
		}
		a.Store = store
	}

	if err := a.bootstrapAdmin(ctx); err != nil {
		return err
	}

	a.Cache = NewPostCache(a.Store, a.Config.PostCacheTTL)
	a.loginLimiter = NewLoginLimiter(5, time.Minute)

	a.setupMiddleware()
	a.setupRoutes()
	a.ready = true
	return nil
}

// Start runs Setup (unless already done) and serves until the server is
// shut down.
func (a *App) Start(ctx context.Context) error {
	if err := a.Setup(ctx); err != nil {
		return err
	}
	a.Logger.Info("listening", "addr", a.Config.Addr, "db", a.Config.DatabasePath)
	if err := a.Echo.Start(a.Config.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (a *App) Shutdown(ctx context.Context) error {
	return a.Echo.Shutdown(ctx)
}

// Close releases the login limiter and, unless it was supplied with
// WithStore, the store.
func (a *App) Close() error {
	if a.loginLimiter != nil {
		a.loginLimiter.Stop()
	}
	if a.Store != nil && !a.externalStore {
		return a.Store.Close()
	}
	return nil
}

func (a *App) bootstrapAdmin(ctx context.Context) error {
	if a.Config.AdminEmail == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(a.Config.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("lemystere: hash admin password: %w", err)
	}
	u, err := a.Store.UpsertUser(ctx, User{
		Email:        a.Config.AdminEmail,
		Name:         "Admin",
		IsAdmin:      true,
		PasswordHash: hash,
	})
	if err != nil {
		return fmt.Errorf("lemystere: bootstrap admin: %w", err)
	}
	a.Logger.Info("admin account ready", "email", u.Email)
	return nil
}

func (a *App) setupRoutes() {
	e := a.Echo

	e.GET("/feed.xml", a.handleFeed)
	e.Static("/uploads", a.Config.UploadDir)

	api := e.Group("/api")

	api.GET("/session", a.handleSession)
	api.POST("/session", a.handleLogin)
	api.DELETE("/session", a.handleLogout)

	api.GET("/events", a.handleListEvents)
	api.POST("/events", a.handleCreateEvent, a.requireAdmin)
	api.DELETE("/events/:id", a.handleDeleteEvent, a.requireAdmin)

	api.GET("/posts", a.handleListPosts)
	api.POST("/posts", a.handleCreatePost, a.requireAdmin)
	api.GET("/posts/id/:id", a.handleGetPostByID, a.requireAdmin)
	api.PATCH("/posts/id/:id", a.handleUpdatePost, a.requireAdmin)
	api.GET("/posts/:slug", a.handleGetPost)
	api.DELETE("/posts/:slug", a.handleDeletePost, a.requireAdmin)

	api.POST("/preview", a.handlePreview, a.requireAdmin)
	api.POST("/uploads", a.handleUpload, a.requireAdmin)
}
