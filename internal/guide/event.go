package guide

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sosodev/duration"
)

var (
	eventIDKeys          = []string{"id", "event_id", "eventId", "evtId", "program_id", "programme_id", "event_locator"}
	eventTitleKeys       = []string{"main_title", "title", "name", "programme_title", "program_title"}
	eventSubtitleKeys    = []string{"secondary_title", "episode_title", "episodeTitle", "subtitle"}
	eventDescriptionKeys = []string{"description", "synopsis", "short_synopsis", "summary"}
	eventStartKeys       = []string{"start_time", "startTime", "start"}
	eventEndKeys         = []string{"end_time", "endTime", "end"}
	eventDurationKeys    = []string{"duration", "duration_seconds"}
	eventImageKeys       = []string{"image_url", "image", "imageUrl", "fallback_image_url"}
)

// timeLayouts are the accepted layouts of textual timestamps. Timestamps without zone are in UTC.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
}

const (
	// epochMillisThreshold separates timestamps in seconds from timestamps in milliseconds.
	epochMillisThreshold = 1e12
	// maxDuration is the longest event duration accepted, in seconds.
	maxDuration = 10 * 366 * 24 * 60 * 60
)

var clockDuration = regexp.MustCompile(`^(\d+):([0-5]?\d)(?::([0-5]?\d))?$`)

// normaliseEvent converts a guide entry into an Event of the channel key.
func normaliseEvent(m map[string]any, channel string) Event {
	ev := Event{
		ID:          pick(m, eventIDKeys),
		Channel:     channel,
		Name:        PlainText(pick(m, eventTitleKeys)),
		Subtitle:    PlainText(pick(m, eventSubtitleKeys)),
		Description: PlainText(pick(m, eventDescriptionKeys)),
		Image:       pick(m, eventImageKeys),
		Raw:         rawJSON(m),
	}

	start, hasStart := firstTime(m, eventStartKeys)
	end, hasEnd := firstTime(m, eventEndKeys)
	duration, hasDuration := firstDuration(m, eventDurationKeys)

	if hasStart {
		ev.StartTime = start
	}
	if hasEnd {
		ev.EndTime = end
	} else if hasStart && hasDuration && start <= math.MaxInt64-duration {
		ev.EndTime = start + duration
	}
	if hasDuration {
		ev.Duration = duration
	} else if hasStart && hasEnd && end >= start {
		ev.Duration = end - start
	}

	return ev
}

func firstTime(m map[string]any, keys []string) (int64, bool) {
	for _, k := range keys {
		if s := scalar(m[k]); s != "" {
			t, err := parseTimestamp(s)
			if err != nil {
				continue
			}
			return t, true
		}
	}
	return 0, false
}

func firstDuration(m map[string]any, keys []string) (int64, bool) {
	for _, k := range keys {
		if s := scalar(m[k]); s != "" {
			d, err := parseDuration(s)
			if err != nil {
				continue
			}
			return d, true
		}
	}
	return 0, false
}

// parseTimestamp returns the UNIX time, in seconds, of s.
// s is either a number of seconds or milliseconds since the epoch, or a date in one of timeLayouts.
func parseTimestamp(s string) (int64, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
			return 0, fmt.Errorf("invalid timestamp %q", s)
		}
		if f >= epochMillisThreshold {
			f /= 1000
		}
		if f >= math.MaxInt64 {
			return 0, fmt.Errorf("timestamp %q is out of range", s)
		}
		return int64(f), nil
	}

	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized timestamp %q", s)
}

// parseDuration returns the number of seconds of s.
// s is either a number of seconds, an ISO 8601 duration such as PT1H30M, a clock duration such as 01:30:00,
// or a Go duration such as 1h30m. Durations longer than maxDuration are rejected.
func parseDuration(s string) (int64, error) {
	s = strings.TrimSpace(s)

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return boundDuration(s, f)
	}

	if upper := strings.ToUpper(s); strings.HasPrefix(upper, "P") && strings.Trim(upper, "PT") != "" {
		d, err := duration.Parse(upper)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %v", s, err)
		}
		if d.Negative {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		days := d.Years*365 + d.Months*30 + d.Weeks*7 + d.Days
		return boundDuration(s, days*86400+d.Hours*3600+d.Minutes*60+d.Seconds)
	}

	if m := clockDuration.FindStringSubmatch(s); m != nil {
		var total float64
		for i, unit := range []float64{3600, 60, 1} {
			if m[i+1] == "" {
				continue
			}
			v, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return 0, fmt.Errorf("invalid duration %q: %v", s, err)
			}
			total += float64(v) * unit
		}
		return boundDuration(s, total)
	}

	if d, err := time.ParseDuration(s); err == nil {
		return boundDuration(s, d.Seconds())
	}

	return 0, fmt.Errorf("unrecognized duration %q", s)
}

// boundDuration returns the whole number of seconds of secs, when it is a valid duration.
func boundDuration(s string, secs float64) (int64, error) {
	if math.IsNaN(secs) || secs < 0 || secs > maxDuration {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return int64(secs), nil
}
