package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/eringen/lemystere"
)

func runServe(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (overrides ADDR)")
	seed := fs.Bool("seed", false, "seed example content before serving")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := lemystere.LoadConfig()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := lemystere.New(cfg)
	defer app.Close()

	if *seed {
		if err := app.Setup(ctx); err != nil {
			return err
		}
		if err := app.Store.Seed(ctx, app.Config.Location()); err != nil {
			return err
		}
		app.Logger.Info("seeded example content")
	}

	errc := make(chan error, 1)
	go func() {
		errc <- app.Start(ctx)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	app.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func openStore() (lemystere.SiteConfig, *lemystere.Store, error) {
	cfg, err := lemystere.LoadConfig()
	if err != nil {
		return cfg, nil, err
	}
	store, err := lemystere.NewStore(cfg.DatabasePath)
	if err != nil {
		return cfg, nil, err
	}
	return cfg, store, nil
}

func runSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Seed(context.Background(), cfg.Location()); err != nil {
		return err
	}
	fmt.Println("Seeded example events and the welcome post.")
	return nil
}

func runUserAdd(args []string) error {
	fs := flag.NewFlagSet("useradd", flag.ContinueOnError)
	email := fs.String("email", "", "account email (required)")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password (default: $LEMYSTERE_PASSWORD)")
	admin := fs.Bool("admin", false, "grant the admin capability")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *email == "" {
		return errors.New("useradd: -email is required")
	}
	pw := *password
	if pw == "" {
		pw = os.Getenv("LEMYSTERE_PASSWORD")
	}
	if len(pw) < 8 {
		return errors.New("useradd: password must be at least 8 characters")
	}

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u, err := store.UpsertUser(context.Background(), lemystere.User{
		Email:        *email,
		Name:         *name,
		IsAdmin:      *admin,
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}
	fmt.Printf("User %s saved (admin: %t)\n", u.Email, u.IsAdmin)
	return nil
}
