package splitter

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/hass-tools/freely-split/internal/constants"
	"github.com/hass-tools/freely-split/internal/fileutils"
	"github.com/hass-tools/freely-split/internal/guide"
	"github.com/ubuntu/decorate"
)

// ErrEmptyOutputDir is returned when no output directory is given.
var ErrEmptyOutputDir = errors.New("output directory cannot be an empty string")

// ChannelFile is the document written for every channel.
type ChannelFile struct {
	Channel ChannelInfo   `json:"channel"`
	Events  []guide.Event `json:"events"`
	Compat  Compat        `json:"compat"`
}

// ChannelInfo identifies the channel of a ChannelFile.
type ChannelInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	SourceID string `json:"sourceId,omitempty"`
}

// Compat is the legacy card listing, for consumers of the older Freesat format.
type Compat struct {
	FreesatCard []Card `json:"freesat_card"`
}

// Card is a legacy listing of the events of a channel.
type Card struct {
	ChannelID string        `json:"channelid"`
	Event     []guide.Event `json:"event"`
}

// Index lists the files written by a run.
type Index struct {
	NID      string       `json:"nid"`
	Start    int64        `json:"start"`
	Channels []IndexEntry `json:"channels"`
	Skipped  int          `json:"skipped"`
	Filtered []string     `json:"filtered,omitempty"`
}

// IndexEntry is a channel file of the Index.
type IndexEntry struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Path   string `json:"path"`
	Events int    `json:"events"`
}

// Writer writes guides to an output directory.
type Writer struct {
	outDir      string
	rawDir      string
	channelsDir string
}

// NewWriter returns a Writer for outDir.
func NewWriter(outDir string) (Writer, error) {
	if outDir == "" {
		return Writer{}, ErrEmptyOutputDir
	}
	return Writer{
		outDir:      outDir,
		rawDir:      filepath.Join(outDir, constants.RawFolder),
		channelsDir: filepath.Join(outDir, constants.ChannelsFolder),
	}, nil
}

// Write writes the raw payload of resp, one file per bucket of g and the index of those files.
// Existing files are overwritten. The first failing write aborts.
func (w Writer) Write(resp guide.Response, g Grouping) (idx Index, err error) {
	slog.Debug("Writing guide", "dir", w.outDir, "channels", len(g.Buckets))
	defer decorate.OnError(&err, "could not write guide to %s", w.outDir)

	if err := fileutils.MakeDirs(w.rawDir, w.channelsDir); err != nil {
		return Index{}, err
	}

	if err := w.writeRaw(resp); err != nil {
		return Index{}, err
	}

	idx = Index{
		NID:      resp.NID,
		Start:    resp.Start,
		Channels: make([]IndexEntry, 0, len(g.Buckets)),
		Skipped:  g.Skipped,
		Filtered: g.Filtered,
	}
	for _, b := range g.Buckets {
		e, err := w.writeChannel(b)
		if err != nil {
			return Index{}, err
		}
		idx.Channels = append(idx.Channels, e)
	}

	p := filepath.Join(w.outDir, constants.IndexFileName)
	if err := fileutils.WriteJSON(p, idx); err != nil {
		return Index{}, fmt.Errorf("failed to write index: %v", err)
	}
	slog.Info("Guide written", "dir", w.outDir, "channels", len(idx.Channels), "skipped", idx.Skipped)

	return idx, nil
}

// writeRaw writes the upstream payload, indented, keeping its number literals and key order.
func (w Writer) writeRaw(resp guide.Response) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, bytes.TrimSpace(resp.Data), "", "  "); err != nil {
		return fmt.Errorf("%w: %v", guide.ErrInvalidPayload, err)
	}
	buf.WriteByte('\n')

	p := filepath.Join(w.rawDir, fmt.Sprintf(constants.RawFilePattern, resp.Start))
	if err := fileutils.AtomicWrite(p, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write raw guide: %v", err)
	}
	slog.Debug("Raw guide written", "file", p)
	return nil
}

func (w Writer) writeChannel(b Bucket) (IndexEntry, error) {
	events := b.Events
	if events == nil {
		events = []guide.Event{}
	}
	doc := ChannelFile{
		Channel: ChannelInfo{ID: b.Key, Name: b.Name, SourceID: b.SourceID},
		Events:  events,
		Compat: Compat{
			FreesatCard: []Card{{ChannelID: b.Key, Event: events}},
		},
	}

	name := b.Key + constants.ChannelExt
	p := filepath.Join(w.channelsDir, name)
	if err := fileutils.WriteJSON(p, doc); err != nil {
		return IndexEntry{}, fmt.Errorf("failed to write channel %s: %v", b.Key, err)
	}
	slog.Debug("Channel written", "file", p, "events", len(events))

	return IndexEntry{
		ID:     b.Key,
		Name:   b.Name,
		Path:   path.Join(constants.ChannelsFolder, name),
		Events: len(events),
	}, nil
}
