// Package splitter groups the events of a guide by channel and writes one file per channel.
package splitter

import (
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/hass-tools/freely-split/internal/constants"
	"github.com/hass-tools/freely-split/internal/guide"
	"github.com/hass-tools/freely-split/internal/lineup"
)

// Bucket holds the events sharing a channel key.
type Bucket struct {
	Key  string
	Name string
	// SourceID is the upstream id of the channel, when it differs from Key.
	SourceID string
	Events   []guide.Event
}

// Grouping is the result of grouping a guide.
type Grouping struct {
	// Buckets are sorted by key.
	Buckets []Bucket
	// Skipped is the number of guide entries attached to no channel.
	Skipped int
	// Filtered lists, sorted, the keys of the channels left out by the lineup.
	Filtered []string
}

// Events returns the number of events in every bucket.
func (g Grouping) Events() int {
	var n int
	for _, b := range g.Buckets {
		n += len(b.Events)
	}
	return n
}

// Group groups the events of g by channel key, keeping only the channels selected by sel.
//
// Channels sharing a key, directly or through an alias, are merged into a single bucket.
// Events of a bucket are sorted by start time, keeping the guide order for equal start times.
func Group(g guide.Guide, sel lineup.Lineup) Grouping {
	index := make(map[string]int)
	var buckets []Bucket
	filtered := make(map[string]struct{})

	for _, ch := range g.Channels {
		key, name, ok := sel.Select(ch.Key, ch.Name)
		if !ok {
			slog.Debug("Channel not in lineup, skipping", "channel", ch.Key, "name", ch.Name, "events", len(ch.Events))
			filtered[ch.Key] = struct{}{}
			continue
		}

		i, found := index[key]
		if !found {
			i = len(buckets)
			index[key] = i
			b := Bucket{Key: key, Name: name, Events: make([]guide.Event, 0, len(ch.Events))}
			if ch.ID != key {
				b.SourceID = ch.ID
			}
			buckets = append(buckets, b)
		} else {
			slog.Info("Merging channels sharing a key", "channel", key, "id", ch.ID)
			if buckets[i].Name == constants.UnknownChannelName {
				buckets[i].Name = name
			}
		}

		for _, ev := range ch.Events {
			ev.Channel = key
			buckets[i].Events = append(buckets[i].Events, ev)
		}
	}

	for i := range buckets {
		sort.SliceStable(buckets[i].Events, func(a, b int) bool {
			return buckets[i].Events[a].StartTime < buckets[i].Events[b].StartTime
		})
	}
	slices.SortFunc(buckets, func(a, b Bucket) int {
		return strings.Compare(a.Key, b.Key)
	})

	var keys []string
	for k := range filtered {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	return Grouping{
		Buckets:  buckets,
		Skipped:  g.Skipped,
		Filtered: keys,
	}
}
