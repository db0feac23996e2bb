// Package guide fetches TV guides from the remote guide API and turns them into normalised channels and events.
package guide

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/hass-tools/freely-split/internal/constants"
)

var (
	// ErrEmptyNID is returned when no network id is given.
	ErrEmptyNID = errors.New("network id cannot be an empty string")
	// ErrInvalidStart is returned when the start timestamp is not a positive number of seconds.
	ErrInvalidStart = errors.New("start should be a positive UNIX timestamp")
	// ErrUnexpectedStatus is returned when the guide API answers with a non 200 status code.
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrInvalidPayload is returned when the guide API answers with something that is not JSON.
	ErrInvalidPayload = errors.New("invalid guide payload")
)

// Response is a guide payload as returned by the API for a network id and start timestamp.
type Response struct {
	NID   string
	Start int64
	Data  []byte
}

// Guide is the parsed content of a Response.
type Guide struct {
	Channels []Channel
	// Skipped is the number of entries which could not be attached to any channel.
	Skipped int
}

// Channel is a channel as found in the guide, with its events.
type Channel struct {
	// ID is the identifier used upstream, as a string.
	ID string
	// Key is the file name safe identifier derived from ID.
	Key    string
	Name   string
	Events []Event
}

// Event is a normalised programme entry.
type Event struct {
	ID          string          `json:"id,omitempty"`
	Channel     string          `json:"channel"`
	Name        string          `json:"name"`
	Subtitle    string          `json:"subtitle,omitempty"`
	Description string          `json:"description,omitempty"`
	StartTime   int64           `json:"startTime"`
	EndTime     int64           `json:"endTime,omitempty"`
	Duration    int64           `json:"duration,omitempty"`
	Image       string          `json:"image,omitempty"`
	Raw         json.RawMessage `json:"_raw,omitempty"`
}

var safeKey = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ChannelKey returns the identifier used to group events and name files for the channel id.
//
// Safe ids are returned as is. Other ids are slugified, and an id with nothing left is "unknown".
func ChannelKey(id string) string {
	id = strings.TrimSpace(id)
	if safeKey.MatchString(id) {
		return id
	}
	if s := Slugify(id); s != "" {
		return s
	}
	return constants.UnknownChannel
}
