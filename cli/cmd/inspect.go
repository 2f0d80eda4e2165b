package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/biolumen/lumacq/cli/reader"
	"github.com/biolumen/lumacq/cli/render"
)

// InspectCommand returns the inspect command with subcommands.
// Inspect returns a deep view of a single artifact.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:  "inspect",
		Usage: "Inspect a single artifact (stack, run)",
		Subcommands: []*cli.Command{
			inspectStackCommand(),
			inspectRunCommand(),
		},
	}
}

func inspectStackCommand() *cli.Command {
	return &cli.Command{
		Name:      "stack",
		Usage:     "Inspect a stack artifact",
		ArgsUsage: "<stack-path>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectStackAction,
	}
}

func inspectStackAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("stack path required", 1)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	resp, err := reader.InspectStack(path)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_stack", resp)
	}

	return r.Render(resp)
}

func inspectRunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Inspect a run by its metadata sidecar",
		ArgsUsage: "<metadata-path>",
		Flags:     TUIReadOnlyFlags(),
		Action:    inspectRunAction,
	}
}

func inspectRunAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("metadata path required", 1)
	}
	path := c.Args().First()

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	resp, err := reader.InspectRun(path)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("inspect_run", resp)
	}

	return r.Render(resp)
}
