package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/biolumen/lumacq/archive"
	"github.com/biolumen/lumacq/config"
	"github.com/biolumen/lumacq/device"
	"github.com/biolumen/lumacq/log"
	"github.com/biolumen/lumacq/session"
	"github.com/biolumen/lumacq/types"
)

// Exit codes for the run command.
const (
	exitSuccess       = 0
	exitInvalidConfig = 1
	exitDeviceFault   = 2
	exitCanceled      = 3
)

// RunCommand returns the run command.
// This is the only command that drives the hardware.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Execute an acquisition run (the only execution entrypoint)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to lumacq.yaml config file",
			},
			// Acquisition flags; each overrides the config file value.
			&cli.StringFlag{
				Name:  "device",
				Usage: "Controller device identifier",
			},
			&cli.Float64Flag{
				Name:  "frequency",
				Usage: "Master acquisition frequency in Hz",
			},
			&cli.StringFlag{
				Name:  "modes",
				Usage: "Comma-separated illumination modes, in cycle order (e.g. blue,green)",
			},
			&cli.StringFlag{
				Name:  "line-map",
				Usage: "Trigger line mapping: shared_port or discrete",
			},
			&cli.BoolFlag{
				Name:  "override-readiness",
				Usage: "Skip the device readiness gate (diagnostics only)",
			},
			// Persistence flags
			&cli.StringFlag{
				Name:  "output-dir",
				Usage: "Directory for stack artifacts and run metadata",
			},
			&cli.BoolFlag{
				Name:  "no-save",
				Usage: "Route frames to display only, never persist",
			},
			&cli.IntFlag{
				Name:  "queue-depth",
				Usage: "Per-mode persistence queue depth in frames",
			},
			// Run shape flags
			&cli.Int64Flag{
				Name:  "ticks",
				Usage: "Stop after this many ticks (0 = run until interrupted)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress result output",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadRunFileConfig(c)
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitInvalidConfig)
	}
	applyRunFlags(c, cfg)

	runCfg, err := cfg.RunConfig()
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitInvalidConfig)
	}

	// The stock binary ships the simulator; real controller drivers
	// implement the device interfaces and are linked in downstream.
	sess, err := session.New(runCfg, session.Options{
		Driver:    device.NewRecorderDriver(),
		Acquirer:  device.NewSimAcquirer(),
		Readiness: device.AlwaysReady{},
		TickLimit: c.Int64("ticks"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("invalid config: %v", err), exitInvalidConfig)
	}
	logger := log.NewLogger(sess.Meta())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		sess.Stop()
	}()

	startTime := time.Now()
	result, runErr := sess.Run(ctx)
	duration := time.Since(startTime)

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
	}

	if cfg.Archive.Enabled && len(result.Artifacts) > 0 {
		if err := uploadArtifacts(ctx, cfg.Archive, logger, result); err != nil {
			fmt.Fprintf(os.Stderr, "archive upload failed: %v\n", err)
		}
	}

	if !c.Bool("quiet") {
		printRunResult(result, duration)
	}

	return cli.Exit("", outcomeToExitCode(result.Outcome.Status))
}

// loadRunFileConfig reads the config file when --config is given,
// otherwise starts from an empty config filled in by flags.
func loadRunFileConfig(c *cli.Context) (*config.Config, error) {
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return &config.Config{}, nil
}

// applyRunFlags overlays explicit CLI flags onto the file config.
// Flags always win over file values.
func applyRunFlags(c *cli.Context, cfg *config.Config) {
	if c.IsSet("device") {
		cfg.Device = c.String("device")
	}
	if c.IsSet("frequency") {
		cfg.FrequencyHz = c.Float64("frequency")
	}
	if c.IsSet("modes") {
		cfg.Modes = splitModes(c.String("modes"))
	}
	if c.IsSet("line-map") {
		cfg.LineMap = c.String("line-map")
	}
	if c.IsSet("override-readiness") {
		cfg.OverrideReadiness = c.Bool("override-readiness")
	}
	if c.IsSet("output-dir") {
		cfg.Output.Dir = c.String("output-dir")
	}
	if c.IsSet("no-save") {
		save := !c.Bool("no-save")
		cfg.Output.Save = &save
	}
	if c.IsSet("queue-depth") {
		cfg.Output.QueueDepth = c.Int("queue-depth")
	}
}

func splitModes(s string) []string {
	parts := strings.Split(s, ",")
	modes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			modes = append(modes, trimmed)
		}
	}
	return modes
}

func uploadArtifacts(ctx context.Context, ac config.ArchiveConfig, logger *log.Logger, result *session.Result) error {
	uploader, err := archive.NewUploader(ctx, archive.Config{
		Bucket:       ac.Bucket,
		Prefix:       ac.Prefix,
		Region:       ac.Region,
		Endpoint:     ac.Endpoint,
		UsePathStyle: ac.PathStyle,
	}, logger)
	if err != nil {
		return err
	}
	_, err = uploader.UploadRun(ctx, result.Meta, result.Artifacts, result.MetadataPath)
	return err
}

func outcomeToExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess:
		return exitSuccess
	case types.OutcomeDeviceFault:
		return exitDeviceFault
	case types.OutcomeCanceled:
		return exitCanceled
	case types.OutcomeInvalidConfig:
		return exitInvalidConfig
	default:
		return exitDeviceFault
	}
}

func printRunResult(result *session.Result, duration time.Duration) {
	fmt.Printf("\nrun_id=%s, outcome=%s, ticks=%d, duration=%s\n",
		result.Meta.RunID,
		result.Outcome.Status,
		result.Ticks,
		duration.Round(time.Millisecond),
	)

	fmt.Printf("\n=== Run Result ===\n")
	fmt.Printf("Run ID:       %s\n", result.Meta.RunID)
	if result.Meta.Device != "" {
		fmt.Printf("Device:       %s\n", result.Meta.Device)
	}
	fmt.Printf("Outcome:      %s\n", result.Outcome.Status)
	if result.Outcome.Message != "" {
		fmt.Printf("Message:      %s\n", result.Outcome.Message)
	}
	fmt.Printf("Ticks:        %d\n", result.Ticks)

	if len(result.Modes) > 0 {
		fmt.Printf("\n=== Mode Counters ===\n")
		for mode, h := range result.Modes {
			fmt.Printf("%-10s routed=%d timeouts=%d dropped=%d rate=%.2fHz\n",
				string(mode)+":", h.FramesRouted, h.Timeouts, h.Dropped, h.AchievedHz)
		}
	}

	if len(result.Artifacts) > 0 {
		fmt.Printf("\n=== Artifacts ===\n")
		for _, a := range result.Artifacts {
			fmt.Printf("  - %s (%d frames, %d bytes)\n", a.Path, a.Frames, a.SizeBytes)
		}
	}
	if result.MetadataPath != "" {
		fmt.Printf("\nMetadata:     %s\n", result.MetadataPath)
	}
}
