package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"courseplanner/internal"
	"courseplanner/internal/config"
	"courseplanner/internal/syncer"
)

var SyncCommand = _syncCommand{
	Name:        "sync",
	Description: "Push stored courses to Google Calendar",
}

type _syncCommand struct {
	Name        string
	Description string
}

func (s _syncCommand) Run(ctx context.Context, cfg *config.Config, log *logrus.Entry, args []string) error {
	storage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	mux, err := newMux(cfg)
	if err != nil {
		return err
	}

	courseSync := syncer.New(log.WithField("component", "syncer"), mux, storage)
	courseSync.CalendarID = cfg.CalendarID

	var courseIDs Strings

	fs := flag.NewFlagSet(s.Name, flag.ExitOnError)
	fs.Usage = func() {
		w := flag.CommandLine.Output()
		fmt.Fprintf(w, "Usage of %s %s:\n", os.Args[0], fs.Name())
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
	}
	fs.Var(&courseIDs, "course-id", "course to sync (repeatable; default all)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	courses, err := s.resolveCourses(ctx, storage, courseIDs)
	if err != nil {
		return err
	}

	w := flag.CommandLine.Output()
	for _, course := range courses {
		report, err := courseSync.SyncCourse(ctx, course)
		if err != nil {
			return fmt.Errorf("syncing %q: %w", course.ID, err)
		}

		fmt.Fprintf(w, "%s (%s): %d events\n", course.Code, course.ID, len(report.Synced))
		for _, res := range report.Synced {
			if res.Status == "error" {
				fmt.Fprintf(w, "  %s: %s (%s)\n", res.EventID, res.Status, res.Error)
				continue
			}
			fmt.Fprintf(w, "  %s: %s\n", res.EventID, res.Status)
		}
	}
	return nil
}

type courseStorage interface {
	Course(ctx context.Context, id string) (*internal.Course, error)
	Courses(ctx context.Context) ([]*internal.Course, error)
}

func (s _syncCommand) resolveCourses(ctx context.Context, storage courseStorage, ids Strings) ([]*internal.Course, error) {
	if len(ids) == 0 {
		return storage.Courses(ctx)
	}
	courses := make([]*internal.Course, 0, len(ids))
	for _, id := range ids {
		course, err := storage.Course(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading course %q: %w", id, err)
		}
		courses = append(courses, course)
	}
	return courses, nil
}
