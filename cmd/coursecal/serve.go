package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"courseplanner/internal/assistant"
	"courseplanner/internal/config"
	"courseplanner/internal/extract"
	"courseplanner/internal/server"
	"courseplanner/internal/syncer"
)

var ServeCommand = _serveCommand{
	Name:        "serve",
	Description: "Run the HTTP API server",
}

type _serveCommand struct {
	Name        string
	Description string
}

func (s _serveCommand) Run(ctx context.Context, cfg *config.Config, log *logrus.Entry, args []string) error {
	// JSON logs while serving; the CLI commands keep the text formatter.
	log.Logger.SetFormatter(&logrus.JSONFormatter{})

	storage, err := openStorage(cfg)
	if err != nil {
		return err
	}

	mux, err := newMux(cfg)
	if err != nil {
		return err
	}

	extractor := extract.New(log.WithField("component", "extract"), cfg.OpenAIKey, cfg.ExtractModel, cfg.Location())

	courseSync := syncer.New(log.WithField("component", "syncer"), mux, storage)
	courseSync.CalendarID = cfg.CalendarID

	chat := assistant.New(log.WithField("component", "assistant"), cfg.OpenAIKey, cfg.ChatModel, mux, storage, cfg.Location())
	chat.CalendarID = cfg.CalendarID

	srv := server.New(log.WithField("component", "server"), cfg, storage, extractor, courseSync, chat, mux)

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if cfg.SyncCron != "" {
		c := cron.New()
		_, err := c.AddFunc(cfg.SyncCron, func() {
			syncAllCourses(ctx, log.WithField("component", "autosync"), storage, courseSync)
		})
		if err != nil {
			return errors.New("invalid SYNC_CRON expression: " + err.Error())
		}
		c.Start()
		defer c.Stop()
		log.WithField("schedule", cfg.SyncCron).Info("periodic sync enabled")
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("listen", cfg.Listen).Info("http server starting")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// syncAllCourses pushes every stored course; failures are logged and
// do not stop the remaining courses.
func syncAllCourses(ctx context.Context, log *logrus.Entry, storage server.Storage, courseSync *syncer.Syncer) {
	courses, err := storage.Courses(ctx)
	if err != nil {
		log.WithError(err).Error("listing courses failed")
		return
	}
	for _, course := range courses {
		report, err := courseSync.SyncCourse(ctx, course)
		if err != nil {
			log.WithError(err).WithField("course_id", course.ID).Error("sync failed")
			continue
		}
		log.WithFields(logrus.Fields{
			"course_id": report.CourseID,
			"synced":    len(report.Synced),
		}).Info("course synced")
	}
}
