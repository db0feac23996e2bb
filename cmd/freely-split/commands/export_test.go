package commands

import (
	"io"
)

type (
	AppConfig = appConfig
	StartTime = startTime
)

// SetArgs sets the arguments for the command.
func (a *App) SetArgs(args ...string) {
	a.cmd.SetArgs(args)
}

// SetOut sets where the command prints its output.
func (a *App) SetOut(w io.Writer) {
	a.cmd.SetOut(w)
}

// Config returns the configuration of the app.
func (a *App) Config() AppConfig {
	return a.config
}
