package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"slices"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/phobologic/invokeaudit/internal/classify"
	"github.com/phobologic/invokeaudit/internal/config"
	"github.com/phobologic/invokeaudit/internal/discover"
	"github.com/phobologic/invokeaudit/internal/extract"
	"github.com/phobologic/invokeaudit/internal/registry"
	"github.com/phobologic/invokeaudit/internal/report"
	"github.com/phobologic/invokeaudit/internal/toon"
)

// auditor runs the pipeline for one resolved configuration.
type auditor struct {
	cfg  *config.Config
	root string
	log  *zap.Logger
}

// newAuditor loads the config, applies flag overrides, validates, and
// resolves the repository root.
func newAuditor(cmd *cobra.Command, opts *options) (*auditor, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if opts.verbose {
		level = "debug"
	}
	log, err := newLogger(level, cfg.Logging.JSON || opts.logJSON, opts.stderr)
	if err != nil {
		return nil, err
	}

	var exe string
	if cfg.Root == "" && opts.root == "" && opts.executable != nil {
		if exe, err = opts.executable(); err != nil {
			return nil, fmt.Errorf("locating executable: %w", err)
		}
	}
	root, err := config.ResolveRoot(opts.root, cfg.Root, exe)
	if err != nil {
		return nil, err
	}

	return &auditor{cfg: cfg, root: root, log: log}, nil
}

func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		path = config.DefaultFile
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file: %w", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("report-dir") {
		cfg.Report.Dir = opts.reportDir
	}
	if flags.Changed("format") {
		cfg.Report.Format = opts.format
	}
	if flags.Changed("top") {
		cfg.Report.Top = opts.top
	}
	if flags.Changed("workers") {
		cfg.Frontend.Workers = opts.workers
	}
	if flags.Changed("max-file-size") {
		cfg.Frontend.MaxFileSize = opts.maxFileSize
	}
	if flags.Changed("strict") {
		cfg.Frontend.Strict = opts.strict
	}
	if flags.Changed("respect-gitignore") {
		cfg.Frontend.RespectGitignore = opts.gitignore
	}
	if flags.Changed("sqlite") {
		cfg.Report.SQLite = opts.sqlite
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// audit builds the registry and extracts call sites. Nothing is written;
// any error here is fatal for the run.
func (a *auditor) audit(ctx context.Context) (*classify.Result, error) {
	rules, err := a.cfg.Rules()
	if err != nil {
		return nil, err
	}

	regPath := a.cfg.RegistryPath(a.root)
	reg, err := registry.Load(regPath, rules)
	if err != nil {
		return nil, err
	}
	current, legacy := reg.Len()
	a.log.Debug("registry loaded",
		zap.String("path", regPath),
		zap.Int("current", current),
		zap.Int("legacy", legacy))
	if ce := a.log.Check(zap.DebugLevel, "registered names"); ce != nil {
		ce.Write(zap.Strings("current", reg.CurrentNames()), zap.Strings("legacy", reg.LegacyNames()))
	}

	files, err := discover.Files(a.root, a.cfg.Frontend.Globs, discover.Options{
		Strict:           a.cfg.Frontend.Strict,
		RespectGitignore: a.cfg.Frontend.RespectGitignore,
	})
	if err != nil {
		return nil, fmt.Errorf("discovering frontend files: %w", err)
	}
	if len(files) == 0 {
		a.log.Warn("no frontend files matched", zap.String("root", a.root), zap.Strings("globs", a.cfg.Frontend.Globs))
	}

	ext, err := extract.New(a.cfg.Frontend.InvokePattern, a.cfg.ExtractOptions(), a.log)
	if err != nil {
		return nil, err
	}

	workers := a.cfg.Frontend.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	sites, err := ext.Collect(ctx, a.root, files, workers)
	if err != nil {
		return nil, fmt.Errorf("extracting call sites: %w", err)
	}
	a.log.Debug("call sites extracted", zap.Int("files", len(files)), zap.Int("callsites", len(sites)))

	return classify.Classify(slices.Values(sites), reg, a.cfg.Convention()), nil
}

// emit writes every report artifact and the console output.
func (a *auditor) emit(res *classify.Result, stdout io.Writer) error {
	dir := a.cfg.ReportDir(a.root)
	if err := report.Write(dir, res); err != nil {
		return err
	}
	if a.cfg.Report.SQLite {
		if err := report.WriteSQLite(filepath.Join(dir, report.SQLiteFile), res); err != nil {
			return fmt.Errorf("writing sqlite report: %w", err)
		}
	}

	switch a.cfg.Report.Format {
	case "toon":
		if _, err := fmt.Fprintln(stdout, toon.Encode(res, a.cfg.Report.Top)); err != nil {
			return err
		}
	default:
		if err := report.Print(stdout, res, a.cfg.Report.Top); err != nil {
			return err
		}
	}

	s := res.Summary()
	fields := []zap.Field{
		zap.String("reports", dir),
		zap.Int("callsites", s.TotalCallSites),
		zap.Int("legacy", s.LegacyCallSites),
		zap.Int("missing_v2", s.CurrentMissingCallSites),
		zap.Int("unknown", s.UnknownCallSites),
	}
	if res.Passed() {
		a.log.Info("audit passed", fields...)
	} else {
		a.log.Error("audit failed: legacy commands still invoked", fields...)
	}
	return nil
}

// once runs a full audit and reports the verdict as an error.
func (a *auditor) once(ctx context.Context, stdout io.Writer) (*classify.Result, error) {
	res, err := a.audit(ctx)
	if err != nil {
		return nil, err
	}
	if err := a.emit(res, stdout); err != nil {
		return res, err
	}
	if !res.Passed() {
		return res, errLegacyCallSites
	}
	return res, nil
}

func runAudit(cmd *cobra.Command, opts *options) error {
	a, err := newAuditor(cmd, opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.log.Sync() }()

	_, err = a.once(cmd.Context(), opts.stdout)
	if err != nil && !errors.Is(err, errLegacyCallSites) {
		a.log.Debug("audit aborted", zap.Error(err))
	}
	return err
}
