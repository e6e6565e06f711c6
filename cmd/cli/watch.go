// Watch command for the Cascade CLI
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira fragment
// SPDX-License-Identifier: MPL-2.0

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/agilira/cascade"
	clutil "github.com/agilira/cascade/internal/cli"
	"github.com/agilira/go-errors"
	"github.com/agilira/orpheus/pkg/orpheus"
)

// handleWatch merges the documents, emits the result and re-emits it every
// time a change produces a different configuration.
func (m *Manager) handleWatch(ctx *orpheus.Context) error {
	files := collectArgs(ctx, 0)
	if err := requireFiles(files); err != nil {
		return err
	}

	interval, err := clutil.ParseExtendedDuration(ctx.GetFlagString("interval"))
	if err != nil {
		return errors.Wrap(err, cascade.ErrCodeInvalidOptions, "invalid --interval value")
	}
	if interval < 10*time.Millisecond {
		return errors.New(cascade.ErrCodeInvalidOptions, fmt.Sprintf("interval too short: %v", interval))
	}

	output := ctx.GetFlagString("output")
	if output != "" {
		if err := clutil.CheckFileWriteable(output); err != nil {
			return errors.Wrap(err, cascade.ErrCodeIOError, "cannot write output file")
		}
	}

	opts, err := buildOptions(ctx)
	if err != nil {
		return err
	}
	opts = opts.WithDefaults()
	opts.ErrorHandler = func(err error, source string) {
		fmt.Fprintf(m.out, "Reload failed (%s): %v\n", filepath.Base(source), err)
	}

	emit, err := m.watchEmitter(opts, output)
	if err != nil {
		return err
	}

	reloader, err := cascade.NewReloader(opts, files,
		cascade.ReloaderConfig{PollInterval: interval, Audit: m.auditLogger},
		func(event cascade.ReloadEvent) {
			names := make([]string, len(event.Changed))
			for i, path := range event.Changed {
				names[i] = filepath.Base(path)
			}
			fmt.Fprintf(m.out, "Reloaded at %s (changed: %s)\n",
				event.ReloadedAt.Format(time.RFC3339), strings.Join(names, ", "))
			if err := emit(event.Config); err != nil {
				fmt.Fprintf(m.out, "Output failed: %v\n", err)
			}
		})
	if err != nil {
		return err
	}
	defer func() { _ = reloader.Close() }()

	if err := emit(reloader.Current().Config); err != nil {
		return err
	}
	fmt.Fprintf(m.out, "Watching %d documents every %v\n", len(files), interval)
	if err := reloader.Start(); err != nil {
		return err
	}

	m.waitForStop()
	return reloader.Stop()
}

// watchEmitter returns the function writing each merged configuration,
// either to output or to the manager's writer.
func (m *Manager) watchEmitter(opts cascade.Options, output string) (func(map[string]any) error, error) {
	dumper := cascade.NewDumper(cascade.DumperOptions{Indentation: opts.Indentation, Lenient: opts.Lenient})
	if output == "" {
		return func(config map[string]any) error {
			out, err := dumper.Dump(config, opts.InlineDepth, 0)
			if err != nil {
				return err
			}
			fmt.Fprint(m.out, out)
			return nil
		}, nil
	}

	writer, err := cascade.NewConfigWriter(output, dumper, opts.InlineDepth, m.auditLogger)
	if err != nil {
		return nil, err
	}
	return func(config map[string]any) error {
		written, err := writer.Write(config)
		if err == nil && written {
			fmt.Fprintf(m.out, "Wrote %s\n", output)
		}
		return err
	}, nil
}

// waitForStop blocks until the manager's stop channel closes or the
// process is interrupted.
func (m *Manager) waitForStop() {
	if m.stop != nil {
		<-m.stop
		return
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	<-sigChan
}
