package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	tui "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/term"
	"github.com/cockroachdb/errors"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "objtop: %+v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("objtop", flag.ContinueOnError)
	registerFlags(fs, &config)
	if err := fs.Parse(args); err != nil {
		return err
	}
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if config.ConfigPath != "" {
		if err := applyConfigFile(&config, config.ConfigPath, explicit); err != nil {
			return err
		}
	}
	if err := validateAndNormalizeConfig(&config); err != nil {
		return err
	}

	logger, closeLog, err := newLogger(config.LogFile, config.LogLevel)
	if err != nil {
		return err
	}
	defer closeLog()

	inv, desc, err := openInventory(config, logger)
	if err != nil {
		return err
	}
	if !term.IsTerminal(os.Stdout.Fd()) {
		return errors.New("objtop needs a terminal on stdout")
	}
	level.Info(logger).Log("msg", "starting", "source", desc, "refresh", config.Refresh)

	m := newModel(inv, desc, logger)
	var opts []tui.ProgramOption
	if config.AltScreen {
		opts = append(opts, tui.WithAltScreen())
	}
	if _, err := tui.NewProgram(m, opts...).Run(); err != nil {
		return errors.Wrap(err, "running ui")
	}
	return nil
}

// newLogger returns a logfmt logger writing to path, or discarding when path
// is empty; the terminal belongs to the UI.
func newLogger(path, lvl string) (log.Logger, func(), error) {
	var w io.Writer = io.Discard
	closeFn := func() {}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening log file")
		}
		w = f
		closeFn = func() { _ = f.Close() }
	}
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = level.NewFilter(logger, levelOption(lvl))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
	return logger, closeFn, nil
}

func levelOption(lvl string) level.Option {
	switch lvl {
	case "debug":
		return level.AllowDebug()
	case "warn":
		return level.AllowWarn()
	case "error":
		return level.AllowError()
	default:
		return level.AllowInfo()
	}
}
