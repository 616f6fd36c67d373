// invokeaudit checks that a frontend only invokes backend commands the
// backend still registers, and fails when it reaches into legacy modules.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/phobologic/invokeaudit/internal/config"
)

var version = "dev"

const (
	exitLegacy = 1
	exitFatal  = 2
)

// errLegacyCallSites marks a completed run whose verdict is fail. Reports
// have been written; main exits 1 without printing an error.
var errLegacyCallSites = errors.New("frontend invokes legacy commands")

func main() {
	os.Exit(exitCode(run(os.Args[1:], os.Stdout, os.Stderr), os.Stderr))
}

func exitCode(err error, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errLegacyCallSites):
		return exitLegacy
	default:
		_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFatal
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	cmd := newRootCmd(stdout, stderr)
	cmd.SetArgs(args)
	return cmd.Execute()
}

// options holds flag values for one invocation.
type options struct {
	root        string
	configPath  string
	reportDir   string
	format      string
	top         int
	workers     int
	maxFileSize int64
	strict      bool
	gitignore   bool
	sqlite      bool
	verbose     bool
	logJSON     bool

	stdout io.Writer
	stderr io.Writer

	// executable locates the installed binary for root resolution.
	executable func() (string, error)
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := &options{stdout: stdout, stderr: stderr, executable: os.Executable}

	rootCmd := &cobra.Command{
		Use:   "invokeaudit",
		Short: "Audit frontend invoke() call sites against backend command registrations",
		Long: `invokeaudit scans frontend sources for invoke("name") call sites, reads the
backend's command registrations, and sorts every call site into one of four
buckets: v2_ok, missing_v2, legacy and unknown.

Reports are written to the report directory on every run. The exit status is
1 when any call site still reaches a legacy command, 2 on a fatal error, and
0 otherwise.`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, opts)
		},
	}
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.root, "root", "", "repository root (default: config root, then the parent of the executable's directory)")
	pf.StringVar(&opts.configPath, "config", "", "config file (default: ./"+config.DefaultFile+" if present)")
	pf.StringVar(&opts.reportDir, "report-dir", "", "report directory, relative to root")
	pf.StringVar(&opts.format, "format", "", "console format: text|toon")
	pf.IntVar(&opts.top, "top", 0, "rows in each frequency table (0 prints all)")
	pf.IntVar(&opts.workers, "workers", 0, "extraction workers (0 uses GOMAXPROCS, 1 is sequential)")
	pf.Int64Var(&opts.maxFileSize, "max-file-size", 0, "skip frontend files larger than this many bytes (config default 1000000, 0 disables the limit)")
	pf.BoolVar(&opts.strict, "strict", false, "fail when a frontend glob's base directory is missing or a frontend file is unreadable")
	pf.BoolVar(&opts.gitignore, "respect-gitignore", false, "skip files matched by the root .gitignore")
	pf.BoolVar(&opts.sqlite, "sqlite", false, "also export call sites to a SQLite database in the report directory")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")
	pf.BoolVar(&opts.logJSON, "log-json", false, "JSON log output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run one audit (the default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, opts)
		},
	})
	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newInitCmd(opts))

	return rootCmd
}

// newLogger builds a zap logger writing to w. Console encoding unless
// jsonFormat is set.
func newLogger(level string, jsonFormat bool, w io.Writer) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if jsonFormat {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(w), zap.NewAtomicLevelAt(lvl))
	return zap.New(core), nil
}
