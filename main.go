package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"local.dev/socialfeed/internal/config"
	"local.dev/socialfeed/internal/httpx"
	"local.dev/socialfeed/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authClient, err := config.NewAuthClient(ctx)
	if err != nil {
		log.Fatal(err)
	}

	st := store.New(
		store.WithLatency(cfg.LatencyScale),
		store.WithDefaultViewer(cfg.ViewerID),
	)

	var fixtures fs.FS = store.Fixtures()
	if cfg.DataDir != "" {
		fixtures = os.DirFS(cfg.DataDir)
	}
	if err := st.LoadFixtures(fixtures, cfg.Rebase); err != nil {
		log.Fatalf("load fixtures: %v", err)
	}

	app := &httpx.AppCtx{
		Store:    st,
		NoAuth:   cfg.NoAuth,
		Fixtures: fixtures,
		Rebase:   cfg.Rebase,
	}
	if authClient != nil {
		app.Auth = authClient
	}

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           httpx.NewRouter(app, cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Println("Server listening on", srv.Addr, "DATA_DIR=", cfg.DataDir, "NO_AUTH=", cfg.NoAuth)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return store.NewSweeper(st, cfg.SweepInterval).Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
	log.Println("Server stopped")
}
