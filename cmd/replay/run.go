package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"OpticalFactory/pkg/pose"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// maxLineSize fits a full mesh with generous float formatting.
const maxLineSize = 4 * 1024 * 1024

type runOptions struct {
	Input         string
	Preset        string
	MaxFailures   int
	RecoveryDelay time.Duration
	Quiet         bool
}

var runOpts runOptions

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Feed a JSONL landmark trace to a fresh processor and report tracking quality",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := runOpts.config()
		if err != nil {
			return err
		}

		in := io.Reader(os.Stdin)
		if runOpts.Input != "" && runOpts.Input != "-" {
			f, err := os.Open(runOpts.Input)
			if err != nil {
				return fmt.Errorf("open trace: %w", err)
			}
			defer f.Close()
			in = f
		}

		summary, err := replay(cmd.Context(), cfg, in, cmd.OutOrStdout(), runOpts.Quiet)
		if err != nil {
			return err
		}
		summary.print(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.Input, "input", "i", "", "JSONL trace, one frame per line (default: stdin)")
	runCmd.Flags().StringVar(&runOpts.Preset, "preset", "default", "Tuning preset: default, strict or permissive")
	runCmd.Flags().IntVar(&runOpts.MaxFailures, "max-failures", -1, "Override the consecutive failure budget")
	runCmd.Flags().DurationVar(&runOpts.RecoveryDelay, "recovery-delay", -1, "Override the recovery time budget, e.g. 300ms")
	runCmd.Flags().BoolVarP(&runOpts.Quiet, "quiet", "q", false, "Only print the summary")
	rootCmd.AddCommand(runCmd)
}

func (o runOptions) config() (pose.Config, error) {
	cfg, err := pose.ConfigByName(o.Preset)
	if err != nil {
		return pose.Config{}, err
	}
	if o.MaxFailures >= 0 {
		cfg.Recovery.MaxConsecutiveFailures = o.MaxFailures
	}
	if o.RecoveryDelay >= 0 {
		cfg.Recovery.RecoveryDelay = o.RecoveryDelay
	}
	return cfg, cfg.Validate()
}

type summary struct {
	Frames   int
	Tracked  int
	Degraded int
	Lost     int
	Elapsed  time.Duration
}

func (s summary) detectionRate() float64 {
	if s.Frames == 0 {
		return 0
	}
	return float64(s.Tracked) / float64(s.Frames)
}

func (s summary) meanFrameTime() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Frames)
}

func (s summary) print(w io.Writer) {
	fmt.Fprintf(w, "frames:          %d\n", s.Frames)
	fmt.Fprintf(w, "tracking:        %d\n", s.Tracked)
	fmt.Fprintf(w, "degraded:        %d\n", s.Degraded)
	fmt.Fprintf(w, "lost:            %d\n", s.Lost)
	fmt.Fprintf(w, "detection rate:  %.1f%%\n", s.detectionRate()*100)
	fmt.Fprintf(w, "mean frame time: %s\n", s.meanFrameTime())
}

func replay(ctx context.Context, cfg pose.Config, in io.Reader, out io.Writer, quiet bool) (summary, error) {
	p, err := pose.NewProcessor(cfg)
	if err != nil {
		return summary{}, err
	}

	var tw *tabwriter.Writer
	if !quiet {
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FRAME\tSTATE\tRECOVERED\tPOSITION\tROTATION\tSCALE\tDETAIL")
		defer tw.Flush()
	}

	var sum summary
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var frame pose.Frame
		if err := jsoniter.UnmarshalFromString(raw, &frame); err != nil {
			return sum, fmt.Errorf("line %d: %w", line, err)
		}

		start := time.Now()
		res, err := p.Process(frame)
		sum.Elapsed += time.Since(start)
		sum.Frames++

		var fe *pose.FrameError
		if err != nil && !errors.As(err, &fe) {
			return sum, fmt.Errorf("line %d: %w", line, err)
		}

		switch res.State {
		case pose.StateTracking:
			sum.Tracked++
		case pose.StateDegraded:
			sum.Degraded++
		default:
			sum.Lost++
		}

		if tw == nil {
			continue
		}
		if fe != nil {
			detail := string(fe.Kind)
			if check := fe.Check(); check != "" {
				detail += " (" + check + ")"
			}
			fmt.Fprintf(tw, "%d\t%s\t%v\t-\t-\t-\t%s\n", sum.Frames, res.State, false, detail)
			continue
		}
		detail := ""
		if res.Cause != nil {
			detail = res.Cause.Error()
		}
		fmt.Fprintf(tw, "%d\t%s\t%v\t%s\t%s\t%s\t%s\n", sum.Frames, res.State, res.Recovered,
			vec(res.Pose.Position), vec(res.Pose.Rotation), vec(res.Pose.Scale), detail)
	}
	if err := scanner.Err(); err != nil {
		return sum, fmt.Errorf("read trace: %w", err)
	}

	return sum, nil
}

func vec(v pose.Vector3) string {
	return fmt.Sprintf("%.3f,%.3f,%.3f", v.X, v.Y, v.Z)
}
