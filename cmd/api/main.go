package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"mfg-report-go/internal/api"
	"mfg-report-go/internal/config"
	"mfg-report-go/internal/logger"
	"mfg-report-go/internal/processor"
	"mfg-report-go/internal/resolver"
	"mfg-report-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.NewWithOptions(logger.Options{Environment: cfg.Environment, Level: cfg.LogLevel})
	log.WithField("service", "mfg-report-go").Info("starting service")

	profiles, err := config.LoadProfiles(cfg.ProfilesPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load threshold profiles")
	}
	aliases, err := config.LoadAliases(cfg.AliasesPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load column aliases")
	}

	log.WithField("db_path", cfg.DBPath).Info("opening store")
	st, err := store.OpenSQLite(cfg.DBPath, log.Entry, aliases.Candidates(resolver.FieldDate)...)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.Close()

	sessions := config.NewSessions(st, profiles)
	h := &api.Handler{
		Store:     st,
		Sessions:  sessions,
		Processor: processor.New(aliases, sessions, log.Component("processor")),
		Uploads:   rate.NewLimiter(rate.Limit(cfg.UploadRate), cfg.UploadBurst),
		Log:       log,
		MaxUpload: cfg.MaxUploadMB << 20,
	}

	addr := fmt.Sprintf(":%s", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      api.NewRouter(h, cfg.AllowedOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.WithError(err).Warn("shutdown incomplete")
		}
	}()

	log.WithField("addr", addr).WithField("profiles", len(profiles)).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server terminated")
	}
	log.Info("server stopped")
}
