// Package spoof drives the generate, encode, verify, patch, verify, persist
// pipeline for every selected image format.
package spoof

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mettke/mean-image/internal/generator"
	"github.com/mettke/mean-image/internal/imagefmt"
	"github.com/mettke/mean-image/internal/utils"
)

// Stage names one step of the per-format pipeline
type Stage string

const (
	StageGenerate       Stage = "generate"
	StageEncode         Stage = "encode"
	StageVerifyOriginal Stage = "verify_original"
	StagePatch          Stage = "patch"
	StageVerifyPatched  Stage = "verify_patched"
	StagePersist        Stage = "persist"
	StageProbe          Stage = "probe"
	StageDone           Stage = "done"
)

// Status is the outcome of one format run
type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
)

// Options configures a Runner
type Options struct {
	Formats   []imagefmt.Format
	Base      imagefmt.Dimensions
	Attack    imagefmt.Dimensions
	Seed      int64
	OutputDir string
	Parallel  bool
	Probe     bool
	Encode    imagefmt.EncodeOptions
}

// OptionsFromConfig maps the loaded configuration onto runner options
func OptionsFromConfig(cfg *utils.Config) (Options, error) {
	formats, err := cfg.SelectedFormats()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Formats:   formats,
		Base:      imagefmt.Dimensions{Width: cfg.Image.Width, Height: cfg.Image.Height},
		Attack:    imagefmt.Dimensions{Width: cfg.Attack.Width, Height: cfg.Attack.Height},
		Seed:      cfg.Image.Seed,
		OutputDir: cfg.OutputDir,
		Parallel:  cfg.Parallel,
		Probe:     cfg.Probe,
		Encode: imagefmt.EncodeOptions{
			JPEGQuality:  cfg.JPEG.Quality,
			GIFNumColors: cfg.GIF.NumColors,
		},
	}, nil
}

// Runner executes the pipeline for a set of formats
type Runner struct {
	opts   Options
	logger *utils.Logger
	lookup func(imagefmt.Format) (imagefmt.Handler, error)
}

// NewRunner creates a runner. A nil logger falls back to the default logger.
func NewRunner(opts Options, logger *utils.Logger) *Runner {
	if logger == nil {
		logger = utils.NewDefaultLogger()
	}
	return &Runner{
		opts:   opts,
		logger: logger,
		lookup: imagefmt.Lookup,
	}
}

// RunAll generates one base image and runs every selected format against it.
// A failing format never stops the others.
func (r *Runner) RunAll(ctx context.Context) (*Report, error) {
	if len(r.opts.Formats) == 0 {
		return nil, fmt.Errorf("no formats selected")
	}
	log := r.logger.WithComponent("spoof")

	start := time.Now()
	params := generator.RandomParams(r.opts.Seed)
	log.WithFields(logrus.Fields{
		"size": r.opts.Base.String(),
		"seed": params.Seed,
	}).Info("Generating base image")

	results := make([]Result, len(r.opts.Formats))
	img, err := generator.Generate(int(r.opts.Base.Width), int(r.opts.Base.Height), params)
	if err != nil {
		for i, f := range r.opts.Formats {
			results[i] = Result{
				Format:   f,
				Stage:    StageGenerate,
				Status:   StatusFail,
				Message:  err.Error(),
				Err:      err,
				Original: r.opts.Base,
			}
		}
		return newReport(r.opts, params.Seed, results, time.Since(start)), nil
	}

	if r.opts.Parallel {
		var wg sync.WaitGroup
		for i, f := range r.opts.Formats {
			wg.Add(1)
			go func(i int, f imagefmt.Format) {
				defer wg.Done()
				results[i] = r.run(ctx, f, img)
			}(i, f)
		}
		wg.Wait()
	} else {
		for i, f := range r.opts.Formats {
			results[i] = r.run(ctx, f, img)
		}
	}

	report := newReport(r.opts, params.Seed, results, time.Since(start))
	log.Infof("Spoofing finished: %d/%d formats passed", report.Summary.Passed, report.Summary.Total)
	return report, nil
}

type step struct {
	stage Stage
	run   func() error
}

// run executes the pipeline for a single format. img is shared between
// goroutines and only read.
func (r *Runner) run(ctx context.Context, f imagefmt.Format, img image.Image) (res Result) {
	start := time.Now()
	log := r.logger.WithComponent("spoof").WithField("format", string(f))
	res = Result{Format: f, Status: StatusFail, Original: r.opts.Base}

	defer func() {
		res.Duration = time.Since(start)
		if res.Status == StatusFail {
			log.WithField("stage", res.Stage).Errorf("Spoofing failed: %s", res.Message)
			return
		}
		log.WithField("output", res.OutputPath).Infof("Spoofed %s to %s", res.Original, res.Patched)
	}()

	h, err := r.lookup(f)
	if err != nil {
		res.Stage = StageEncode
		res.Message, res.Err = err.Error(), err
		return res
	}

	var buf []byte
	steps := []step{
		{StageEncode, func() error {
			var err error
			buf, err = h.Encode(img, r.opts.Encode)
			res.Bytes = len(buf)
			return err
		}},
		{StageVerifyOriginal, func() error {
			if err := h.Verify(buf, r.opts.Base); err != nil {
				return err
			}
			sum, err := checksumOf(h, buf)
			res.ChecksumBefore = sum
			return err
		}},
		{StagePatch, func() error {
			return h.Patch(buf, r.opts.Attack)
		}},
		{StageVerifyPatched, func() error {
			if err := h.Verify(buf, r.opts.Attack); err != nil {
				return err
			}
			res.Patched = r.opts.Attack
			sum, err := checksumOf(h, buf)
			res.ChecksumAfter = sum
			return err
		}},
		{StagePersist, func() error {
			path, err := persist(r.opts.OutputDir, h.OutputName(), buf)
			res.OutputPath = path
			return err
		}},
	}

	for _, s := range steps {
		res.Stage = s.stage
		if err := ctx.Err(); err != nil {
			res.Message, res.Err = err.Error(), err
			return res
		}
		log.WithField("stage", s.stage).Debug("Running stage")
		if err := s.run(); err != nil {
			res.Message, res.Err = err.Error(), err
			return res
		}
	}

	if r.opts.Probe {
		res.Stage = StageProbe
		probed, err := Probe(res.OutputPath)
		if err != nil {
			log.Warnf("Probe failed: %v", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("probe: %v", err))
		} else {
			res.Probed = &probed
		}
	}

	res.Stage = StageDone
	res.Status = StatusPass
	return res
}

// checksumOf formats the stored checksum of buf, or returns "" for formats without one
func checksumOf(h imagefmt.Handler, buf []byte) (string, error) {
	layout, err := h.Locate(buf)
	if err != nil {
		return "", err
	}
	state, err := layout.ReadChecksum(buf)
	if err != nil || state == nil {
		return "", err
	}
	return fmt.Sprintf("0x%08x", state.Stored), nil
}

// persist writes buf to dir/name with mode 0644
func persist(dir, name string, buf []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := utils.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
