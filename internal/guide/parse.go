package guide

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/hass-tools/freely-split/internal/constants"
	"github.com/ubuntu/decorate"
)

// maxDepth is how deep nested objects are searched for a channel list.
const maxDepth = 3

var (
	channelListKeys = []string{"channels", "data", "results", "items", "programs", "schedule", "schedules", "guide"}
	eventListKeys   = []string{"events", "event", "schedule", "schedules", "programmes", "programs"}
	nestedEventKeys = []string{"events", "event", "schedule"}

	channelIDKeys   = []string{"id", "channelId", "channel_id", "serviceId", "service_id", "sid", "uid", "service"}
	channelNameKeys = []string{"name", "channelName", "channel_name", "title", "serviceName", "service_name"}

	// eventChannelKeys reference the channel of an event in flat guides.
	eventChannelKeys     = []string{"channel", "channelId", "channel_id", "serviceId", "service_id", "sid"}
	eventChannelNameKeys = []string{"channelName", "channel_name", "serviceName", "service_name"}
)

// Parse decodes a guide payload into channels and their normalised events.
//
// Several payload shapes are understood: lists of channels carrying their events, possibly nested
// in wrapper objects, a single channel object, or flat lists of events referencing their channel.
func Parse(data []byte) (g Guide, err error) {
	defer decorate.OnError(&err, "could not parse guide")

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return Guide{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	items, skipped, channelList := findChannels(payload)
	p := parser{flat: make(map[string]int)}
	p.guide.Skipped = skipped
	for _, item := range items {
		if channelList {
			p.addChannel(item)
			continue
		}
		p.addEvent(item)
	}

	if len(p.guide.Channels) == 0 {
		slog.Warn("No channel found in guide payload")
	}
	slog.Debug("Guide parsed", "channels", len(p.guide.Channels), "skipped", p.guide.Skipped)

	return p.guide, nil
}

type parser struct {
	guide Guide
	// flat maps channel keys of flat guides to their index in guide.Channels.
	flat map[string]int
}

// addChannel attaches a channel object and its events to the guide.
// Channels without events list are kept with no events.
func (p *parser) addChannel(item map[string]any) {
	id, name := channelIdentity(item)
	events, ok := channelEvents(item)
	if !ok && id == "" {
		slog.Warn("Skipping channel without id nor events", "entry", rawJSON(item))
		p.guide.Skipped++
		return
	}

	key := ChannelKey(id)
	ch := Channel{ID: id, Key: key, Name: name, Events: make([]Event, 0, len(events))}
	for _, e := range events {
		ev, ok := e.(map[string]any)
		if !ok {
			slog.Warn("Skipping guide entry which is not an object", "channel", key, "entry", e)
			p.guide.Skipped++
			continue
		}
		ch.Events = append(ch.Events, normaliseEvent(ev, key))
	}
	p.guide.Channels = append(p.guide.Channels, ch)
}

// addEvent attaches an event of a flat guide to the channel it references.
func (p *parser) addEvent(item map[string]any) {
	id, name, ok := eventChannel(item)
	if !ok {
		slog.Warn("Skipping guide entry without channel", "entry", rawJSON(item))
		p.guide.Skipped++
		return
	}

	key := ChannelKey(id)
	i, found := p.flat[key]
	if !found {
		i = len(p.guide.Channels)
		p.flat[key] = i
		p.guide.Channels = append(p.guide.Channels, Channel{ID: id, Key: key, Name: name})
	}
	if p.guide.Channels[i].Name == constants.UnknownChannelName && name != constants.UnknownChannelName {
		p.guide.Channels[i].Name = name
	}
	p.guide.Channels[i].Events = append(p.guide.Channels[i].Events, normaliseEvent(item, key))
}

// findChannels returns the list of channel objects, or flat events, found in payload.
// channelList reports whether the items are channels. The number of list items which are not objects is returned too.
func findChannels(payload any) (items []map[string]any, skipped int, channelList bool) {
	switch v := payload.(type) {
	case []any:
		objs, s := objects(v)
		return objs, s, slices.ContainsFunc(objs, hasEvents)

	case map[string]any:
		channels, s, flat, flatSkipped := findLists(v, 0)
		if channels != nil {
			return channels, s, true
		}

		// The payload is a single channel.
		if hasEvents(v) {
			if id, _ := channelIdentity(v); id != "" || flat == nil {
				return []map[string]any{v}, 0, true
			}
		}
		return flat, flatSkipped, false
	}

	return nil, 0, false
}

// findLists searches m and its nested objects for a list of channels carrying events.
// The first list of other objects found on the way is returned as flat, as it may be a list of events.
func findLists(m map[string]any, depth int) (channels []map[string]any, skipped int, flat []map[string]any, flatSkipped int) {
	for _, k := range channelListKeys {
		switch val := m[k].(type) {
		case []any:
			objs, s := objects(val)
			if len(objs) == 0 {
				continue
			}
			if slices.ContainsFunc(objs, hasEvents) {
				return objs, s, nil, 0
			}
			if flat == nil {
				flat, flatSkipped = objs, s
			}
		case map[string]any:
			if depth >= maxDepth {
				continue
			}
			c, s, f, fs := findLists(val, depth+1)
			if c != nil {
				return c, s, nil, 0
			}
			if flat == nil && f != nil {
				flat, flatSkipped = f, fs
			}
		}
	}
	return nil, 0, flat, flatSkipped
}

// objects returns the items of l which are JSON objects, and how many were not.
func objects(l []any) (objs []map[string]any, skipped int) {
	for _, item := range l {
		m, ok := item.(map[string]any)
		if !ok {
			skipped++
			continue
		}
		objs = append(objs, m)
	}
	return objs, skipped
}

func hasEvents(m map[string]any) bool {
	_, ok := channelEvents(m)
	return ok
}

// channelEvents returns the events list of a channel object, directly under the channel or in one of its nested objects.
func channelEvents(ch map[string]any) ([]any, bool) {
	for _, k := range eventListKeys {
		if l, ok := ch[k].([]any); ok {
			return l, true
		}
	}

	keys := make([]string, 0, len(ch))
	for k := range ch {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		nested, ok := ch[k].(map[string]any)
		if !ok {
			continue
		}
		for _, k2 := range nestedEventKeys {
			if l, ok := nested[k2].([]any); ok {
				return l, true
			}
		}
	}

	return nil, false
}

// channelIdentity returns the id and the name of a channel object.
// Channels without id are identified by their name.
func channelIdentity(ch map[string]any) (id, name string) {
	id = pick(ch, channelIDKeys)
	name = pick(ch, channelNameKeys)
	if id == "" {
		id = name
	}
	if name == "" {
		name = constants.UnknownChannelName
	}
	return id, name
}

// eventChannel returns the channel id and name referenced by an event of a flat guide.
// The reference can either be a scalar or a channel object.
func eventChannel(ev map[string]any) (id, name string, ok bool) {
	for _, k := range eventChannelKeys {
		switch v := ev[k].(type) {
		case map[string]any:
			id, name = channelIdentity(v)
		default:
			id = scalar(v)
			name = pick(ev, eventChannelNameKeys)
		}
		if id != "" {
			break
		}
	}
	if id == "" {
		return "", "", false
	}
	if name == "" {
		name = constants.UnknownChannelName
	}
	return id, name, true
}

// pick returns the first non empty scalar value of m found under keys, as a string.
func pick(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := scalar(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// scalar returns the string representation of JSON strings and numbers, and "" for anything else.
func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}

// rawJSON encodes v back to JSON, with sorted object keys.
func rawJSON(v any) json.RawMessage {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Warn("Could not encode guide entry", "error", err)
		return nil
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}
