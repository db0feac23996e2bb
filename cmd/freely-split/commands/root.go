// Package commands implements the freely-split command line.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/hass-tools/freely-split/internal/cli"
	"github.com/hass-tools/freely-split/internal/constants"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// App represents the application.
type App struct {
	cmd    *cobra.Command
	viper  *viper.Viper
	config appConfig
}

// appConfig holds the configuration for the application.
type appConfig struct {
	Verbosity int  `mapstructure:"verbose"`
	JSONLogs  bool `mapstructure:"json-logs"`

	NID          string        `mapstructure:"nid"`
	Start        startTime     `mapstructure:"start"`
	OutputDir    string        `mapstructure:"out"`
	APIURL       string        `mapstructure:"api-url"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ChannelsFile string        `mapstructure:"channels-file"`
	MetricsFile  string        `mapstructure:"metrics-file"`
	DryRun       bool          `mapstructure:"dry-run"`
}

// startTime is the UNIX time the guide starts at.
type startTime int64

// New creates a new App instance with default values.
func New() (*App, error) {
	a := App{}

	a.cmd = &cobra.Command{
		Use:   constants.CmdName,
		Short: "Split a TV guide into one file per channel",
		Long: `Fetch the TV guide of a network from the guide API and split it into one JSON file per channel.

Channel files are written to the channels directory of the output directory, next to the raw guide
and an index of the written files. Each channel file carries a freesat_card section for consumers of
the older Freesat format.`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Command parsing has been successful. Returns to not print usage anymore.
			a.cmd.SilenceUsage = true
			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Set verbosity before loading config
			if err := cli.InitViperConfig(constants.CmdName, constants.EnvPrefix, a.cmd, a.viper); err != nil {
				return err
			}
			if err := cli.BindEnvAliases(a.viper, "out", strings.ToUpper(constants.EnvPrefix)+"_OUT", "OUTPUT_DIR"); err != nil {
				return err
			}
			if err := a.viper.Unmarshal(&a.config, viper.DecodeHook(decodeHook())); err != nil {
				a.cmd.SilenceUsage = false
				return fmt.Errorf("unable to decode configuration into struct: %w", err)
			}
			slog.Info("Got app config", "config", a.config)

			cli.SetSlog(a.config.Verbosity, a.config.JSONLogs) // Update logging after loading config if necessary
			return nil
		},
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.config.validate(); err != nil {
				a.cmd.SilenceUsage = false
				return err
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run()
		},
	}
	a.viper = viper.New()
	a.cmd.CompletionOptions.HiddenDefaultCmd = true

	installRootCmd(&a)
	cli.InstallConfigFlag(a.cmd)

	if err := a.viper.BindPFlags(a.cmd.PersistentFlags()); err != nil {
		return nil, err
	}
	if err := a.viper.BindPFlags(a.cmd.Flags()); err != nil {
		return nil, err
	}

	a.installVersion()

	return &a, nil
}

func installRootCmd(app *App) {
	cmd := app.cmd

	cmd.PersistentFlags().CountVarP(&app.config.Verbosity, "verbose", "v", "issue INFO (-v), DEBUG (-vv)")
	cmd.PersistentFlags().BoolVar(&app.config.JSONLogs, "json-logs", false, "enable JSON formatted logs")

	cmd.Flags().StringVar(&app.config.NID, "nid", constants.DefaultNID, "network id of the guide")
	cmd.Flags().String("start", "", "start of the guide, as a UNIX timestamp or a UTC day like 2024-05-01")
	cmd.Flags().StringVarP(&app.config.OutputDir, "out", "o", constants.DefaultOutputDir, "directory to write the guide to")
	cmd.Flags().StringVar(&app.config.APIURL, "api-url", constants.DefaultAPIURL, "URL of the guide API")
	cmd.Flags().DurationVar(&app.config.Timeout, "timeout", constants.DefaultTimeout, "timeout of the guide download")
	cmd.Flags().StringVar(&app.config.ChannelsFile, "channels-file", "", "YAML file listing the channels to write, all channels are written if not set")
	cmd.Flags().StringVar(&app.config.MetricsFile, "metrics-file", "", "file to write Prometheus metrics of the run to")
	cmd.Flags().BoolVarP(&app.config.DryRun, "dry-run", "d", false, "fetch the guide and print its beginning, without writing anything")

	if err := cmd.MarkFlagDirname("out"); err != nil {
		panic(fmt.Errorf("failed to mark out flag as directory: %w", err))
	}
	if err := cmd.MarkFlagFilename("channels-file", "yaml", "yml"); err != nil {
		panic(fmt.Errorf("failed to mark channels-file flag as filename: %w", err))
	}
}

// Run executes the command and associated process, returning an error if any.
func (a App) Run() error {
	return a.cmd.Execute()
}

// UsageError returns if the error is a command parsing or runtime one.
func (a App) UsageError() bool {
	return !a.cmd.SilenceUsage
}

// RootCmd returns the root command.
func (a App) RootCmd() cobra.Command {
	return *a.cmd
}

func (c appConfig) validate() error {
	if c.NID == "" {
		return errors.New("nid cannot be empty")
	}
	if c.Start <= 0 {
		return errors.New("start is required, as a positive UNIX timestamp or a UTC day")
	}
	if c.OutputDir == "" {
		return errors.New("out cannot be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative, got %v", c.Timeout)
	}
	return nil
}

// decodeHook returns the hooks used to decode the configuration.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		startTimeHook,
	)
}

// startTimeHook decodes a start given as a string, a number or a date parsed by the configuration file reader.
func startTimeHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(startTime(0)) || data == nil {
		return data, nil
	}

	switch v := data.(type) {
	case startTime:
		return v, nil
	case string:
		return parseStart(v)
	case time.Time:
		return startTime(v.UTC().Unix()), nil
	}

	val := reflect.ValueOf(data)
	switch from.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return startTime(val.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := val.Uint()
		if u > math.MaxInt64 {
			return nil, fmt.Errorf("start %d is out of range", u)
		}
		return startTime(u), nil
	case reflect.Float32, reflect.Float64:
		f := val.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return nil, fmt.Errorf("start %v should be a whole number of seconds", f)
		}
		return startTime(f), nil
	}

	return nil, fmt.Errorf("start should be a UNIX timestamp or a day like %s, got %T", time.DateOnly, data)
}

// parseStart parses a UNIX timestamp, or a day in UTC.
func parseStart(s string) (startTime, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return startTime(v), nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return 0, fmt.Errorf("start %q should be a UNIX timestamp or a day like %s", s, time.DateOnly)
	}
	return startTime(t.Unix()), nil
}
