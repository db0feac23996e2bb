// Package constants is responsible for defining the constants used in the application.
package constants

import (
	"log/slog"
	"time"
)

var (
	// Version is the version of the application.
	Version = "Dev"
)

const (
	// CmdName is the name of the command line tool.
	CmdName = "freely-split"

	// EnvPrefix is the prefix of the environment variables read by the command line tool.
	EnvPrefix = "freely"

	// DefaultLogLevel is the default log level selected without any verbosity flags.
	DefaultLogLevel = slog.LevelWarn

	// DefaultAPIURL is the guide endpoint queried when none is configured.
	DefaultAPIURL = "https://www.freeview.co.uk/api/tv-guide"

	// DefaultNID is the network id used when none is configured.
	DefaultNID = "64865"

	// DefaultOutputDir is the default output folder, relative to the working directory.
	DefaultOutputDir = "docs"

	// DefaultTimeout is the overall timeout of the guide request.
	DefaultTimeout = 30 * time.Second

	// UserAgent is sent with every guide request.
	UserAgent = CmdName + "/" + "1"

	// RawFolder is the name of the folder holding the unmodified guide payloads.
	RawFolder = "raw"

	// ChannelsFolder is the name of the folder holding one file per channel.
	ChannelsFolder = "channels"

	// IndexFileName is the name of the index written at the root of the output folder.
	IndexFileName = "index.json"

	// RawFilePattern is the name pattern of the raw guide dump, keyed by the start timestamp.
	RawFilePattern = "guide_%d.json"

	// ChannelExt is the extension of the per channel files.
	ChannelExt = ".json"

	// UnknownChannel is the channel key used when no usable identifier or name exists.
	UnknownChannel = "unknown"

	// UnknownChannelName is the display name of channels without one.
	UnknownChannelName = "Unknown"

	// DryRunPreviewSize is the number of payload bytes printed in dry run mode.
	DryRunPreviewSize = 2000
)
