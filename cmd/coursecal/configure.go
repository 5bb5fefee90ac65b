package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"courseplanner/internal"
	"courseplanner/internal/config"
)

const googleProvider = "google"

var ConfigureCommand = _configureCommand{
	Name:        "configure",
	Description: "Connect a Google account from the terminal",
}

type _configureCommand struct {
	Name        string
	Description string
}

func (s _configureCommand) Run(ctx context.Context, cfg *config.Config, log *logrus.Entry, args []string) error {
	storage, err := openStorage(cfg)
	if err != nil {
		return err
	}
	mux, err := newMux(cfg)
	if err != nil {
		return err
	}
	provider, err := mux.Get(googleProvider)
	if err != nil {
		return err
	}

	w := flag.CommandLine.Output()

	auth, err := provider.Login(ctx, func(authURL string) {
		fmt.Fprintf(w, "Go to the following link in your browser\n%s\n", authURL)
	})
	if err != nil {
		return fmt.Errorf("google: logging in: %w", err)
	}
	email, err := provider.Email(ctx, auth)
	if err != nil {
		return fmt.Errorf("google: getting email: %w", err)
	}

	acc := internal.Account{
		Platform: googleProvider,
		Email:    email,
		Auth:     string(auth),
	}
	fmt.Fprintf(w, "Saving account %q for %q provider...\n", acc.Email, acc.Platform)
	if err := storage.SaveAccount(ctx, &acc); err != nil {
		return fmt.Errorf("saving account: %w", err)
	}
	fmt.Fprintln(w, "Connected! Courses can now be synced.")
	return nil
}
