package cmd

import (
	"github.com/urfave/cli/v2"

	"github.com/biolumen/lumacq/cli/reader"
	"github.com/biolumen/lumacq/cli/render"
)

// StatsCommand returns the stats command.
// Stats returns aggregated, derived facts about an output directory.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show aggregated statistics for an output directory",
		Flags:  append(TUIReadOnlyFlags(), DirFlag),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	stats, err := reader.Stats(c.String("dir"))
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI("stats_dir", stats)
	}

	return r.Render(stats)
}
