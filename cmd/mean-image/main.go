package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mettke/mean-image/internal/spoof"
	"github.com/mettke/mean-image/internal/utils"
)

// errSpoofFailed is returned when at least one format did not make it
// through the pipeline
var errSpoofFailed = errors.New("spoofing failed")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mean-image",
		Short: "Image dimension spoofing tool",
		Long: `mean-image produces small, valid-looking PNG, JPEG, GIF and BMP files whose
headers declare far larger dimensions than the pixel data they carry.

For every selected format the tool:
- Generates a noise image and encodes it
- Locates the dimension fields in the encoded header
- Verifies them, overwrites them and recomputes covering checksums
- Verifies the patched header and writes output.<ext>

The files are meant for testing how image pipelines cope with headers that
ask for gigabytes of memory. Use them only against systems you are
authorized to test.`,
		Version:       utils.GetVersionString(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newSpoofCmd())
	cmd.AddCommand(newInspectCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newSpoofCmd() *cobra.Command {
	var (
		formats      []string
		width        uint32
		height       uint32
		attackWidth  uint32
		attackHeight uint32
		outputDir    string
		seed         int64
		parallel     bool
		probe        bool
		reportFormat string
		configFile   string
		verbose      bool
	)

	cmd := &cobra.Command{
		Use:   "spoof",
		Short: "Generate images with spoofed header dimensions",
		Long: `Generate a noise image, encode it in every selected format, patch the
declared dimensions to the attack size and write output.<ext> files.

Flags override values from the configuration file and MEAN_IMAGE_*
environment variables.

Exit codes:
  0 - All formats were spoofed and verified
  1 - One or more formats failed, or the configuration is invalid`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides := make(map[string]interface{})
			override := func(flag, key string, value interface{}) {
				if cmd.Flags().Changed(flag) {
					overrides[key] = value
				}
			}
			override("format", "formats", formats)
			override("width", "image.width", width)
			override("height", "image.height", height)
			override("attack-width", "attack.width", attackWidth)
			override("attack-height", "attack.height", attackHeight)
			override("output-dir", "output_dir", outputDir)
			override("seed", "image.seed", seed)
			override("parallel", "parallel", parallel)
			override("probe", "probe", probe)
			override("report", "report_format", reportFormat)

			return runSpoof(cmd, configFile, overrides, verbose)
		},
	}

	cmd.Flags().StringSliceVarP(&formats, "format", "f", nil, "Formats to spoof (png, jpeg, gif, bmp, all)")
	cmd.Flags().Uint32Var(&width, "width", 512, "Width of the generated image")
	cmd.Flags().Uint32Var(&height, "height", 512, "Height of the generated image")
	cmd.Flags().Uint32Var(&attackWidth, "attack-width", 65500, "Width written into the patched headers")
	cmd.Flags().Uint32Var(&attackHeight, "attack-height", 65500, "Height written into the patched headers")
	cmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory the output files are written to")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Noise seed (0 picks a random one)")
	cmd.Flags().BoolVar(&parallel, "parallel", false, "Process formats concurrently")
	cmd.Flags().BoolVar(&probe, "probe", false, "Decode the written headers and report what a decoder sees")
	cmd.Flags().StringVarP(&reportFormat, "report", "r", "text", "Report format (text, json, toml)")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file path")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	return cmd
}

func runSpoof(cmd *cobra.Command, configFile string, overrides map[string]interface{}, verbose bool) error {
	cfg, err := utils.LoadConfigWithOverrides(configFile, overrides)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLoggerFromConfig(cfg, verbose, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	opts, err := spoof.OptionsFromConfig(cfg)
	if err != nil {
		return err
	}

	logger.WithComponent("mean-image").Infof("Spoofing %v to %dx%d into %s",
		opts.Formats, opts.Attack.Width, opts.Attack.Height, opts.OutputDir)

	report, err := spoof.NewRunner(opts, logger).RunAll(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to run spoofing pipeline: %w", err)
	}

	if err := report.Write(cmd.OutOrStdout(), cfg.ReportFormat); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if report.Failed() {
		return fmt.Errorf("%w: %d/%d formats failed", errSpoofFailed, report.Summary.Failed, report.Summary.Total)
	}
	return nil
}

func newInspectCmd() *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the declared dimensions of an image header",
		Long: `Detect the format of an image from its signature and print the dimension
fields, their offsets and, for PNG, whether the IHDR checksum is intact.
Pixel data is never decoded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := spoof.InspectFile(args[0])
			if err != nil {
				return err
			}
			return in.Write(cmd.OutOrStdout(), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "output", "o", "text", "Output format (text, json, toml)")

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "mean-image version %s\n", utils.Version)
			fmt.Fprintf(out, "Commit: %s\n", utils.Commit)
			fmt.Fprintf(out, "Built: %s\n", utils.Date)
		},
	}
}
