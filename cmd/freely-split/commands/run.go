package commands

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/hass-tools/freely-split/internal/fileutils"
	"github.com/hass-tools/freely-split/internal/guide"
	"github.com/hass-tools/freely-split/internal/lineup"
	"github.com/hass-tools/freely-split/internal/metrics"
	"github.com/hass-tools/freely-split/internal/splitter"
)

// run fetches the guide, splits it per channel and prints the index of the written files.
func (a App) run() (err error) {
	rec := metrics.New()
	if a.config.MetricsFile != "" && !a.config.DryRun {
		defer func() {
			if err != nil {
				rec.Failed()
			}
			if mErr := rec.WriteTextfile(a.config.MetricsFile); mErr != nil {
				slog.Error("Failed to write metrics", "error", mErr)
			}
		}()
	}

	sel, err := lineup.Load(a.config.ChannelsFile)
	if err != nil {
		return err
	}
	if !sel.All() {
		slog.Info("Restricting output to channel lineup", "file", a.config.ChannelsFile, "channels", sel.Len())
	}

	c, err := guide.New(guide.WithBaseURL(a.config.APIURL), guide.WithTimeout(a.config.Timeout))
	if err != nil {
		return fmt.Errorf("failed to create guide client: %v", err)
	}

	begin := time.Now()
	resp, err := c.Fetch(a.cmd.Context(), a.config.NID, int64(a.config.Start))
	if err != nil {
		return err
	}
	rec.ObserveFetch(time.Since(begin))

	out := a.cmd.OutOrStdout()
	if a.config.DryRun {
		slog.Info("Dry run, not writing guide", "bytes", len(resp.Data))
		return splitter.Preview(out, resp)
	}

	g, err := guide.Parse(resp.Data)
	if err != nil {
		return err
	}
	grouping := splitter.Group(g, sel)

	w, err := splitter.NewWriter(a.config.OutputDir)
	if err != nil {
		return err
	}
	idx, err := w.Write(resp, grouping)
	if err != nil {
		return err
	}

	rec.Succeeded(metrics.Run{
		Channels: len(idx.Channels),
		Events:   grouping.Events(),
		Skipped:  grouping.Skipped,
		Filtered: len(grouping.Filtered),
	})

	data, err := fileutils.MarshalJSON(idx)
	if err != nil {
		return fmt.Errorf("failed to encode index: %v", err)
	}
	if _, err := out.Write(data); err != nil {
		return fmt.Errorf("failed to print index: %v", err)
	}
	return nil
}
