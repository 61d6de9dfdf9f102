// Package cli implements the optimizer command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services/archive"
	"github.com/phambaophuc/image-optimizer/internal/services/batch"
	"github.com/phambaophuc/image-optimizer/internal/services/processor"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version is set at build time.
	Version = "dev"
)

type options struct {
	quality       int
	workers       int
	out           string
	archiveMethod string
	archiveLevel  int
	maxFileSize   int64
	verbose       bool
	quiet         bool
}

func NewRootCmd() *cobra.Command {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:   "optimizer [files...]",
		Short: "Re-encode images at a target quality and bundle them into a zip",
		Long: `optimizer re-encodes every given image at one quality setting.
PNG input stays PNG; everything else becomes JPEG. Successful results are
written to a single zip archive, failed files are reported and skipped.

Examples:
  optimizer photos/*.jpg --quality 70
  optimizer a.png b.webp --out small.zip --archive-method zstd`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.IntVarP(&opts.quality, "quality", "q", processor.DefaultQuality, "Output quality (1-100, clamped)")
	flags.IntVarP(&opts.workers, "workers", "w", batch.DefaultWorkers, "Number of parallel workers")
	flags.StringVarP(&opts.out, "out", "o", archive.DefaultFilename, "Archive path")
	flags.StringVar(&opts.archiveMethod, "archive-method", archive.MethodDeflate, "Archive compression: deflate, store or zstd")
	flags.IntVar(&opts.archiveLevel, "archive-level", 0, "Deflate level (1-9, 0 for default)")
	flags.Int64Var(&opts.maxFileSize, "max-file-size", processor.MaxFileSize, "Largest accepted input in bytes")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose logging")
	flags.BoolVar(&opts.quiet, "quiet", false, "Hide the progress bar")

	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "optimizer %s\n", Version)
		},
	}
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	logger := zap.NewNop()
	if opts.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		defer logger.Sync()
	}

	builder, err := archive.NewBuilder(archive.Options{Method: opts.archiveMethod, Level: opts.archiveLevel})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inputs, err := readInputs(args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	bar := newProgressBar(cmd.ErrOrStderr(), len(inputs), opts.quiet)

	orchestrator := batch.New(
		processor.NewImageProcessor(opts.maxFileSize, logger),
		opts.workers,
		logger,
		batch.WithProgress(func(int, error) { _ = bar.Add(1) }),
	)

	start := time.Now()
	job, runErr := orchestrator.Run(ctx, batch.Request{Inputs: inputs, Quality: opts.quality})
	_ = bar.Finish()
	if job == nil {
		return runErr
	}

	printReport(out, job, time.Since(start))
	if runErr != nil {
		return runErr
	}

	data, err := builder.Build(ctx, archive.EntriesFromJob(job))
	if err != nil {
		return err
	}
	if err := os.WriteFile(opts.out, data, 0o644); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}

	fmt.Fprintf(out, "Archive written to %s (%s)\n", opts.out, utils.FormatBytes(int64(len(data))))

	if s := job.Summary(); !s.Complete() {
		return fmt.Errorf("%d of %d files failed", s.Failed, s.Total)
	}
	return nil
}

func readInputs(paths []string) ([]models.ImageInput, error) {
	inputs := make([]models.ImageInput, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", p, err)
		}
		declared := mime.TypeByExtension(filepath.Ext(p))
		inputs = append(inputs, models.NewImageInput(filepath.Base(p), utils.DetectMimeType(declared, data), data))
	}
	return inputs, nil
}

func newProgressBar(w io.Writer, total int, quiet bool) *progressbar.ProgressBar {
	if quiet {
		w = io.Discard
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Optimizing"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(w) }),
	)
}

func printReport(w io.Writer, job *models.BatchJob, elapsed time.Duration) {
	names := archive.Names(archive.EntriesFromJob(job))
	n := 0
	for i, r := range job.Results {
		if !r.OK() {
			continue
		}
		fmt.Fprintf(w, "  [%d] %s -> %s  %s -> %s  (%s%%)\n",
			i, r.Result.OriginalName, names[n],
			utils.FormatBytes(r.Result.OriginalSize), utils.FormatBytes(r.Result.OptimizedSize),
			r.Result.ReductionPercent())
		n++
	}
	for _, f := range job.Failures() {
		fmt.Fprintf(w, "  [%d] %s FAILED (%s): %s\n", f.Index, f.Name, f.Kind, f.Error)
	}

	s := job.Summary()
	fmt.Fprintf(w, "%d/%d optimized in %s, %s -> %s (%s%%)\n",
		s.Succeeded, s.Total, elapsed.Round(time.Millisecond),
		utils.FormatBytes(s.OriginalBytes), utils.FormatBytes(s.OptimizedBytes), s.ReductionPercent)
}

// Execute runs the root command.
func Execute() int {
	if err := NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, batch.ErrNoSuccessfulItems) {
			return 2
		}
		return 1
	}
	return 0
}
