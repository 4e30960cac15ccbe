package spoof

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/mettke/mean-image/internal/imagefmt"
)

// Result is the outcome of the pipeline for one format
type Result struct {
	Format imagefmt.Format `json:"format" toml:"format"`
	// Stage is the last stage entered, StageDone on success
	Stage    Stage    `json:"stage" toml:"stage"`
	Status   Status   `json:"status" toml:"status"`
	Message  string   `json:"message,omitempty" toml:"message,omitempty"`
	Warnings []string `json:"warnings,omitempty" toml:"warnings,omitempty"`
	Err      error    `json:"-" toml:"-"`

	Original   imagefmt.Dimensions `json:"original" toml:"original"`
	Patched    imagefmt.Dimensions `json:"patched" toml:"patched"`
	OutputPath string              `json:"output_path,omitempty" toml:"output_path,omitempty"`
	Bytes      int                 `json:"bytes" toml:"bytes"`

	ChecksumBefore string `json:"checksum_before,omitempty" toml:"checksum_before,omitempty"`
	ChecksumAfter  string `json:"checksum_after,omitempty" toml:"checksum_after,omitempty"`

	// Probed holds what a header-only decoder reports for the written file
	Probed *imagefmt.Dimensions `json:"probed,omitempty" toml:"probed,omitempty"`

	Duration time.Duration `json:"duration" toml:"duration"`
}

// Summary counts results by status
type Summary struct {
	Total    int `json:"total" toml:"total"`
	Passed   int `json:"passed" toml:"passed"`
	Failed   int `json:"failed" toml:"failed"`
	Warnings int `json:"warnings" toml:"warnings"`
}

// Report aggregates the results of one RunAll call
type Report struct {
	Timestamp time.Time           `json:"timestamp" toml:"timestamp"`
	OutputDir string              `json:"output_dir" toml:"output_dir"`
	Seed      int64               `json:"seed" toml:"seed"`
	Base      imagefmt.Dimensions `json:"base" toml:"base"`
	Attack    imagefmt.Dimensions `json:"attack" toml:"attack"`
	Duration  time.Duration       `json:"duration" toml:"duration"`
	Summary   Summary             `json:"summary" toml:"summary"`
	Results   []Result            `json:"results" toml:"results"`
}

func newReport(opts Options, seed int64, results []Result, elapsed time.Duration) *Report {
	return &Report{
		Timestamp: time.Now().UTC(),
		OutputDir: opts.OutputDir,
		Seed:      seed,
		Base:      opts.Base,
		Attack:    opts.Attack,
		Duration:  elapsed,
		Summary:   summarize(results),
		Results:   results,
	}
}

func summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPass:
			s.Passed++
		default:
			s.Failed++
		}
		s.Warnings += len(r.Warnings)
	}
	return s
}

// Failed reports whether any format failed
func (r *Report) Failed() bool {
	return r.Summary.Failed > 0
}

// Result returns the result for format f
func (r *Report) Result(f imagefmt.Format) (Result, bool) {
	for _, res := range r.Results {
		if res.Format == f {
			return res, true
		}
	}
	return Result{}, false
}

// Write renders the report as text, json or toml
func (r *Report) Write(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case "json":
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(r)
	case "toml":
		return toml.NewEncoder(w).Encode(r)
	case "text", "":
		return r.writeText(w)
	default:
		return fmt.Errorf("unsupported report format: %s", format)
	}
}

func (r *Report) writeText(w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Mean Image Spoofing Report\n")
	fmt.Fprintf(&b, "==========================\n\n")
	fmt.Fprintf(&b, "Output: %s\n", r.OutputDir)
	fmt.Fprintf(&b, "Timestamp: %s\n", r.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(&b, "Seed: %d\n", r.Seed)
	fmt.Fprintf(&b, "Dimensions: %s -> %s\n\n", r.Base, r.Attack)

	fmt.Fprintf(&b, "Summary:\n")
	fmt.Fprintf(&b, "  Total formats: %d\n", r.Summary.Total)
	fmt.Fprintf(&b, "  Passed: %d\n", r.Summary.Passed)
	fmt.Fprintf(&b, "  Failed: %d\n", r.Summary.Failed)
	fmt.Fprintf(&b, "  Overall status: ")
	if r.Failed() {
		fmt.Fprintf(&b, "❌ FAIL\n\n")
	} else {
		fmt.Fprintf(&b, "✅ PASS\n\n")
	}

	fmt.Fprintf(&b, "Format Details:\n")
	fmt.Fprintf(&b, "---------------\n")
	for _, res := range r.Results {
		status := "✅ PASS"
		if res.Status == StatusFail {
			status = "❌ FAIL"
		}
		fmt.Fprintf(&b, "%s %s (stage: %s)\n", status, res.Format, res.Stage)
		if res.Message != "" {
			fmt.Fprintf(&b, "    Error: %s\n", res.Message)
		}
		if res.Status == StatusPass {
			fmt.Fprintf(&b, "    Dimensions: %s -> %s\n", res.Original, res.Patched)
			fmt.Fprintf(&b, "    File: %s (%d bytes)\n", res.OutputPath, res.Bytes)
		}
		if res.ChecksumBefore != "" {
			fmt.Fprintf(&b, "    Checksum: %s -> %s\n", res.ChecksumBefore, res.ChecksumAfter)
		}
		if res.Probed != nil {
			fmt.Fprintf(&b, "    Decoder sees: %s\n", res.Probed)
		}
		for _, warning := range res.Warnings {
			fmt.Fprintf(&b, "    Warning: %s\n", warning)
		}
		if res.Duration > 0 {
			fmt.Fprintf(&b, "    Duration: %v\n", res.Duration)
		}
		fmt.Fprintf(&b, "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}
