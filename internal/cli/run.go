// Package cli implements the interactive and headless run loops behind the
// lattice command.
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/muesli/termenv"

	"github.com/lattice-run/lattice"
	"github.com/lattice-run/lattice/internal/logging"
	"github.com/lattice-run/lattice/pkg/domain"
)

// RunOptions configures a CLI simulation session.
type RunOptions struct {
	ModelPath string
	Events    []string // pre-scripted events; empty means interactive stdin
	JSON      bool     // NDJSON records on stdout
	Debug     bool
}

// Run loads the model, starts a session and feeds it events. In interactive
// mode events are read line by line from stdin; an empty line performs an
// internal step (during actions and eventless transitions only) and "quit"
// stops the session.
func Run(ctx context.Context, opts RunOptions) error {
	logger := newLogger(opts.Debug)

	engine := lattice.New(lattice.WithLogger(logger))
	if err := engine.StartFile(ctx, opts.ModelPath); err != nil {
		if domain.IsHalting(err) {
			emit(opts, engine.LastRecord())
			return fmt.Errorf("session halted during start: %w", err)
		}
		return err
	}
	emit(opts, engine.LastRecord())

	if len(opts.Events) > 0 {
		for _, name := range opts.Events {
			if err := stepOnce(ctx, engine, name, opts); err != nil {
				return err
			}
		}
		return nil
	}

	return interactiveLoop(ctx, engine, opts)
}

func interactiveLoop(ctx context.Context, engine *lattice.Engine, opts RunOptions) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		if !opts.JSON {
			prompt(engine)
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && err != io.EOF {
				return err
			}
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "quit" || line == "exit" {
			return engine.Stop()
		}
		if line == "reset" {
			if err := engine.Reset(ctx); err != nil {
				return err
			}
			emit(opts, engine.LastRecord())
			continue
		}

		if err := stepOnce(ctx, engine, line, opts); err != nil {
			return err
		}
	}
}

func stepOnce(ctx context.Context, engine *lattice.Engine, event string, opts RunOptions) error {
	record, err := engine.Step(ctx, event, nil)
	if record != nil {
		emit(opts, record)
	}
	if err != nil {
		if domain.IsHalting(err) {
			return fmt.Errorf("session halted: %w", err)
		}
		return err
	}
	return nil
}

// emit prints one step record, either as NDJSON or human-readable.
func emit(opts RunOptions, record *domain.StepRecord) {
	if record == nil {
		return
	}
	if opts.JSON {
		data, err := json.Marshal(record)
		if err != nil {
			return
		}
		fmt.Println(string(data))
		return
	}

	out := termenv.NewOutput(os.Stdout)
	path := out.String(strings.Join(record.Path, " / ")).Foreground(out.Color("6")).Bold()
	fmt.Printf("state: %s\n", path)

	if record.TransitionFired != "" {
		fmt.Printf("fired: %s\n", out.String(record.TransitionFired).Foreground(out.Color("2")))
	}
	if record.EventlessFired != "" {
		fmt.Printf("fired: %s\n", out.String(record.EventlessFired).Foreground(out.Color("2")))
	}
	for _, action := range record.ActionsRun {
		fmt.Printf("  ran %s\n", action)
	}
	for _, e := range record.Errors {
		fmt.Printf("  %s\n", out.String("error: "+e).Foreground(out.Color("1")))
	}
}

// prompt shows the events currently able to fire, so interactive users know
// what to type.
func prompt(engine *lattice.Engine) {
	events := engine.PossibleEvents()
	if len(events) > 0 {
		fmt.Printf("events: %s\n", strings.Join(events, ", "))
	}
	fmt.Print("> ")
}

func newLogger(debug bool) *slog.Logger {
	if debug {
		return logging.New(slog.LevelDebug)
	}
	return logging.New(slog.LevelWarn)
}
