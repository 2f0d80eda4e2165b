package reader

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/biolumen/lumacq/stack"
	"github.com/biolumen/lumacq/types"
)

// InspectStack opens a stack artifact and returns its summary.
func InspectStack(path string) (*StackResponse, error) {
	sum, err := stack.Summarize(path)
	if err != nil {
		return nil, err
	}
	return &StackResponse{
		Path:      path,
		RunID:     sum.Header.RunID,
		Mode:      string(sum.Header.Mode),
		Device:    sum.Header.Device,
		StartedAt: sum.Header.StartedAt,
		Frames:    sum.Frames,
		FirstSeq:  sum.FirstSeq,
		LastSeq:   sum.LastSeq,
		SizeBytes: sum.SizeBytes,
		Truncated: sum.Truncated,
	}, nil
}

// InspectRun reads a run's metadata sidecar.
func InspectRun(path string) (*RunResponse, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run metadata: %w", err)
	}
	var resp RunResponse
	if err := yaml.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("decode run metadata %s: %w", path, err)
	}
	if resp.RunID == "" {
		return nil, fmt.Errorf("%s is not a run metadata file", path)
	}
	return &resp, nil
}

// ListRuns scans an output directory for run metadata sidecars,
// newest first.
func ListRuns(dir string) ([]ListRunItem, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "metadata_*.yaml"))
	if err != nil {
		return nil, err
	}

	items := make([]ListRunItem, 0, len(paths))
	for _, p := range paths {
		run, err := InspectRun(p)
		if err != nil {
			// Skip unreadable sidecars rather than failing the listing.
			continue
		}
		items = append(items, ListRunItem{
			RunID:     run.RunID,
			Status:    run.Status,
			StartedAt: run.StartedAt,
			Ticks:     run.Ticks,
			Path:      p,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].StartedAt.After(items[j].StartedAt)
	})
	return items, nil
}

// Stats aggregates every run and stack artifact in an output directory.
func Stats(dir string) (*DirStats, error) {
	stats := &DirStats{
		ByStatus:   make(map[string]int),
		FramesMode: make(map[string]int64),
	}

	runs, err := ListRuns(dir)
	if err != nil {
		return nil, err
	}
	stats.Runs = len(runs)
	for _, r := range runs {
		stats.ByStatus[r.Status]++
	}

	stackPaths, err := filepath.Glob(filepath.Join(dir, "*"+types.StackExt))
	if err != nil {
		return nil, err
	}
	for _, p := range stackPaths {
		sum, err := stack.Summarize(p)
		if err != nil {
			continue
		}
		stats.Stacks++
		stats.Frames += sum.Frames
		stats.SizeBytes += sum.SizeBytes
		stats.FramesMode[string(sum.Header.Mode)] += sum.Frames
		if sum.Truncated {
			stats.Truncated++
		}
	}
	return stats, nil
}
