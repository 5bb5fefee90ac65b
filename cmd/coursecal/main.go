package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"courseplanner/calendar"
	"courseplanner/calendar/google"
	"courseplanner/internal"
	"courseplanner/internal/config"
	"courseplanner/internal/sqlite"
)

var opts struct {
	DBFile  string
	Verbose bool
}

func init() {
	flag.StringVar(&opts.DBFile, "db", "", "sqlite database file (overrides DB_FILE)")
	flag.BoolVar(&opts.Verbose, "verbose", false, "enable debug logging")
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "Usage: %s [options] <command>\n", os.Args[0])
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintf(w, "  %-12s%s\n", ServeCommand.Name, ServeCommand.Description)
	fmt.Fprintf(w, "  %-12s%s\n", SyncCommand.Name, SyncCommand.Description)
	fmt.Fprintf(w, "  %-12s%s\n", ConfigureCommand.Name, ConfigureCommand.Description)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid configuration:", err)
		os.Exit(1)
	}
	if opts.DBFile != "" {
		cfg.DBFile = opts.DBFile
	}

	logger := logrus.New()
	if opts.Verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	log := logrus.NewEntry(logger)

	var args []string
	if flag.NArg() > 1 {
		args = flag.Args()[1:]
	}

	switch flag.Arg(0) {
	case ServeCommand.Name:
		err = ServeCommand.Run(ctx, cfg, log, args)
	case SyncCommand.Name:
		err = SyncCommand.Run(ctx, cfg, log, args)
	case ConfigureCommand.Name:
		err = ConfigureCommand.Run(ctx, cfg, log, args)
	case "":
		usage()
		os.Exit(2)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", flag.Arg(0))
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func openStorage(cfg *config.Config) (*sqlite.Storage, error) {
	db, err := sql.Open(sqlite.DriverName, cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("opening database %q: %w", cfg.DBFile, err)
	}
	return sqlite.NewStorage(db), nil
}

func newMux(cfg *config.Config) (internal.Mux, error) {
	credJSON, err := os.ReadFile(cfg.GoogleCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	googleCal, err := google.NewClient(credJSON, cfg.OAuthRedirectURL, cfg.Timezone)
	if err != nil {
		return nil, err
	}

	mux := calendar.NewMux()
	mux.Register("google", googleCal)
	return mux, nil
}
