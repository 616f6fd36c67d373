package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/phobologic/invokeaudit/internal/config"
)

const (
	sentinelStart = "# >>> invokeaudit reports"
	sentinelEnd   = "# <<< invokeaudit reports"
)

const configHeader = `# invokeaudit configuration.
#
# Paths are relative to root. An empty root means the parent of the directory
# holding the invokeaudit binary. Patterns are RE2 regular expressions and each
# must have a capture group for the command name.
`

type initOptions struct {
	dryRun    bool
	force     bool
	gitignore bool
}

// newInitCmd builds `invokeaudit init`, which writes a starter config with
// every default spelled out.
func newInitCmd(opts *options) *cobra.Command {
	iopts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a starter config file",
		Long: `Write a config file holding every default so it can be edited in place.

path defaults to ./` + config.DefaultFile + `. An existing file is left alone unless
--force is given. --report-dir is recorded in the written config. With
--gitignore, a block ignoring the report files is added to (or updated in) the
.gitignore next to the config.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFile
			if len(args) > 0 {
				path = args[0]
			}
			cfg := config.Default()
			if cmd.Flags().Changed("report-dir") {
				cfg.Report.Dir = opts.reportDir
			}
			return runInit(path, cfg, iopts, opts)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&iopts.dryRun, "dry-run", false, "print what would be written without modifying any file")
	f.BoolVar(&iopts.force, "force", false, "overwrite an existing config file")
	f.BoolVar(&iopts.gitignore, "gitignore", false, "add the report files to .gitignore")
	return cmd
}

func runInit(path string, cfg *config.Config, iopts *initOptions, opts *options) error {
	content, err := starterConfig(cfg)
	if err != nil {
		return err
	}

	if iopts.dryRun {
		_, _ = fmt.Fprint(opts.stdout, content)
		if iopts.gitignore {
			_, _ = fmt.Fprintln(opts.stdout)
			_, _ = fmt.Fprintln(opts.stdout, gitignoreSection(cfg.Report.Dir))
		}
		return nil
	}

	if _, err := os.Stat(path); err == nil && !iopts.force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	_, _ = fmt.Fprintf(opts.stderr, "wrote default config to %s\n", path)

	if !iopts.gitignore {
		return nil
	}

	ignorePath := filepath.Join(filepath.Dir(path), ".gitignore")
	existing, err := os.ReadFile(ignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", ignorePath, err)
	}
	updated := applySection(string(existing), gitignoreSection(cfg.Report.Dir))
	if err := os.WriteFile(ignorePath, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", ignorePath, err)
	}
	_, _ = fmt.Fprintf(opts.stderr, "wrote report ignore rules to %s\n", ignorePath)
	return nil
}

func starterConfig(cfg *config.Config) (string, error) {
	data, err := cfg.Marshal()
	if err != nil {
		return "", fmt.Errorf("rendering default config: %w", err)
	}
	return configHeader + "\n" + string(data), nil
}

// gitignoreSection returns the sentinel-wrapped ignore rules for the report
// artifacts written under dir.
func gitignoreSection(dir string) string {
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	lines := []string{
		sentinelStart,
		"/" + dir + "/frontend_invoke_*",
		"/" + dir + "/frontend_*_callsites.tsv",
		sentinelEnd,
	}
	return strings.Join(lines, "\n")
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	if len(content) > 0 {
		content += "\n"
	}
	return content + section + "\n"
}
