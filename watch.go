package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/invokeaudit/internal/discover"
)

const defaultDebounce = 300 * time.Millisecond

func newWatchCmd(opts *options) *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run the audit whenever frontend sources or the registry change",
		Long: `Run one audit, then watch the frontend glob directories and the backend
registry file and re-audit after each burst of changes. A failing verdict is
logged and watching continues. Stop with Ctrl-C.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newAuditor(cmd, opts)
			if err != nil {
				return err
			}
			defer func() { _ = a.log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w, err := newWatcher(a, opts.stdout, debounce)
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			return w.run(ctx)
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", defaultDebounce, "quiet period before re-running after a change")
	return cmd
}

// watcher re-runs an auditor on filesystem changes.
type watcher struct {
	a        *auditor
	stdout   io.Writer
	debounce time.Duration
	fsw      *fsnotify.Watcher

	registry  string
	reportDir string
	bases     []string

	// onAudit, when set, sees the outcome of every audit.
	onAudit func(error)
}

func newWatcher(a *auditor, stdout io.Writer, debounce time.Duration) (*watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting file watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w := &watcher{
		a:         a,
		stdout:    stdout,
		debounce:  debounce,
		fsw:       fsw,
		registry:  filepath.Clean(a.cfg.RegistryPath(a.root)),
		reportDir: filepath.Clean(a.cfg.ReportDir(a.root)),
	}

	for _, base := range discover.Bases(a.cfg.Frontend.Globs) {
		dir := filepath.Join(a.root, filepath.FromSlash(base))
		w.bases = append(w.bases, dir)
		if err := w.watchBase(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	regDir := filepath.Dir(w.registry)
	if err := fsw.Add(regDir); err != nil {
		a.log.Warn("cannot watch registry directory", zap.String("dir", regDir), zap.Error(err))
	}
	return w, nil
}

// Close stops the underlying watcher.
func (w *watcher) Close() error {
	return w.fsw.Close()
}

// watchBase watches base recursively. A base that does not exist yet is
// awaited by watching its nearest existing ancestor; the audit itself
// decides whether the missing base is fatal.
func (w *watcher) watchBase(base string) error {
	if fi, err := os.Stat(base); err == nil && fi.IsDir() {
		return w.addTree(base)
	}
	w.a.log.Debug("watch base missing", zap.String("dir", base))
	for dir := filepath.Dir(base); ; {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			if err := w.fsw.Add(dir); err != nil {
				return fmt.Errorf("watching %s: %w", dir, err)
			}
			return nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}

// addTree watches dir and every directory below it. A missing dir is not an
// error.
func (w *watcher) addTree(dir string) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			w.a.log.Warn("skipping unreadable directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == ".git" || within(filepath.Clean(path), w.reportDir) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
	if errors.Is(err, filepath.SkipDir) {
		return nil
	}
	return err
}

// relevant reports whether an event should trigger a re-audit.
func (w *watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	path := filepath.Clean(ev.Name)
	if within(path, w.reportDir) {
		return false
	}
	if path == w.registry {
		return true
	}
	for _, base := range w.bases {
		if within(path, base) {
			return true
		}
		// A directory on the way to a missing base appeared.
		if ev.Has(fsnotify.Create) && within(base, path) {
			return true
		}
	}
	return false
}

func (w *watcher) run(ctx context.Context) error {
	w.audit(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			w.a.log.Debug("change detected", zap.String("path", ev.Name), zap.Stringer("op", ev.Op))
			if ev.Has(fsnotify.Create) {
				w.created(filepath.Clean(ev.Name))
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.audit(ctx)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.a.log.Warn("watch error", zap.Error(err))
		}
	}
}

// created extends the watch set after a directory appears: inside a base
// it is watched recursively, and on the way to a missing base the base is
// watched again (or its next existing ancestor).
func (w *watcher) created(path string) {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return
	}
	for _, base := range w.bases {
		var err error
		switch {
		case within(path, base):
			err = w.addTree(path)
		case within(base, path):
			err = w.watchBase(base)
		default:
			continue
		}
		if err != nil {
			w.a.log.Warn("cannot watch new directory", zap.String("dir", path), zap.Error(err))
		}
	}
}

func (w *watcher) audit(ctx context.Context) {
	_, err := w.a.once(ctx, w.stdout)
	if err != nil && !errors.Is(err, errLegacyCallSites) {
		w.a.log.Error("audit failed", zap.Error(err))
	}
	if w.onAudit != nil {
		w.onAudit(err)
	}
}

// within reports whether path is dir or lies below it.
func within(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
