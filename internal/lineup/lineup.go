// Package lineup selects, renames and aliases the channels written by a run.
package lineup

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/hass-tools/freely-split/internal/guide"
	"github.com/ubuntu/decorate"
	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingID is returned when a lineup entry has no channel id.
	ErrMissingID = errors.New("channel id cannot be empty")
	// ErrDuplicateChannel is returned when a channel is listed more than once.
	ErrDuplicateChannel = errors.New("channel listed more than once")
	// ErrInvalidAlias is returned when an alias cannot be used as a file name.
	ErrInvalidAlias = errors.New("alias is not a valid channel key")
)

// Entry is a channel kept in the output.
type Entry struct {
	// ID is the upstream channel id.
	ID string `yaml:"id"`
	// Name overrides the channel name found in the guide.
	Name string `yaml:"name,omitempty"`
	// Alias replaces the channel key, and so the output file name.
	Alias string `yaml:"alias,omitempty"`
}

// Lineup is the set of channels to write.
// The zero value keeps every channel.
type Lineup struct {
	entries map[string]Entry
}

// Load reads a lineup from the YAML file at path.
// An empty path returns the lineup keeping every channel.
func Load(path string) (l Lineup, err error) {
	if path == "" {
		return Lineup{}, nil
	}
	defer decorate.OnError(&err, "could not load channel lineup %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		return Lineup{}, err
	}
	return Parse(data)
}

// Parse decodes a YAML list of entries.
func Parse(data []byte) (Lineup, error) {
	var entries []Entry
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&entries); err != nil && !errors.Is(err, io.EOF) {
		return Lineup{}, fmt.Errorf("invalid lineup: %v", err)
	}

	l := Lineup{entries: make(map[string]Entry, len(entries))}
	for i, e := range entries {
		if e.ID == "" {
			return Lineup{}, fmt.Errorf("%w: entry %d", ErrMissingID, i+1)
		}
		if e.Alias != "" && guide.ChannelKey(e.Alias) != e.Alias {
			return Lineup{}, fmt.Errorf("%w: %q", ErrInvalidAlias, e.Alias)
		}
		key := guide.ChannelKey(e.ID)
		if _, ok := l.entries[key]; ok {
			return Lineup{}, fmt.Errorf("%w: %q", ErrDuplicateChannel, e.ID)
		}
		l.entries[key] = e
	}
	slog.Debug("Channel lineup loaded", "channels", len(l.entries))

	return l, nil
}

// All reports whether every channel is kept.
func (l Lineup) All() bool {
	return l.entries == nil
}

// Len is the number of listed channels.
func (l Lineup) Len() int {
	return len(l.entries)
}

// Select returns the output key and name of the channel with key and name.
// ok is false when the channel is not part of the lineup.
func (l Lineup) Select(key, name string) (outKey, outName string, ok bool) {
	if l.All() {
		return key, name, true
	}
	e, found := l.entries[key]
	if !found {
		return "", "", false
	}

	outKey, outName = key, name
	if e.Alias != "" {
		outKey = e.Alias
	}
	if e.Name != "" {
		outName = e.Name
	}
	return outKey, outName, true
}
