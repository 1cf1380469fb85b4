// Package host adapts unipatch to the editor host: filesystem refresh,
// package import and opening URLs.
package host

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"github.com/nxadm/tail"

	"github.com/adamancini/unipatch/internal/log"
)

// runCommand runs argv in dir and includes stderr in the error.
func runCommand(ctx context.Context, dir string, argv []string) error {
	if len(argv) == 0 {
		return fmt.Errorf("empty command")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", argv[0], err, msg)
		}
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// CommandRefresher asks the host to rescan the filesystem by running a command.
type CommandRefresher struct {
	Dir  string
	Argv []string
}

// Refresh runs the configured command.
func (r *CommandRefresher) Refresh(ctx context.Context) error {
	return runCommand(ctx, r.Dir, r.Argv)
}

// NopRefresher is used when the host picks up changes on its own.
type NopRefresher struct{}

// Refresh does nothing.
func (NopRefresher) Refresh(ctx context.Context) error { return nil }

// ArtifactPlaceholder is replaced with the artifact path in import commands.
const ArtifactPlaceholder = "{artifact}"

// CommandImporter imports a package by running a host command.
// When LogFile is set, lines the command appends to it are logged at debug
// level while it runs.
type CommandImporter struct {
	Dir     string
	Argv    []string
	LogFile string
	Logger  *slog.Logger
}

// Import runs the command with ArtifactPlaceholder substituted.
func (c *CommandImporter) Import(ctx context.Context, artifactPath string) error {
	argv := make([]string, len(c.Argv))
	for i, arg := range c.Argv {
		argv[i] = strings.ReplaceAll(arg, ArtifactPlaceholder, artifactPath)
	}

	if c.LogFile != "" {
		stop, err := followLog(c.LogFile, log.OrDiscard(c.Logger).With("component", "import", "log", c.LogFile))
		if err != nil {
			return err
		}
		defer stop()
	}

	return runCommand(ctx, c.Dir, argv)
}

// followLog forwards new lines of path to logger until stop is called.
// Only lines written after the call are forwarded.
func followLog(path string, logger *slog.Logger) (stop func(), err error) {
	t, err := tail.TailFile(path, tail.Config{
		Follow:    true,
		ReOpen:    true,
		MustExist: false,
		Poll:      true,
		Location:  &tail.SeekInfo{Offset: 0, Whence: 2},
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to follow %s: %w", path, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for line := range t.Lines {
			if line.Err != nil {
				continue
			}
			logger.Debug(line.Text)
		}
	}()

	return func() {
		_ = t.Stop()
		t.Cleanup()
		wg.Wait()
	}, nil
}
