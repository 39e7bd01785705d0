package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const version = "0.3.0"

type Config struct {
	host     string
	mode     string
	lobbies  int
	players  int
	rounds   int
	duration time.Duration
	joinCode string
	rate     float64
	scenario string
	verbose  bool

	// Answer-delay bounds, settable only via a scenario file.
	thinkMin time.Duration
	thinkMax time.Duration
}

func (c *Config) validate() error {
	switch c.mode {
	case modeThroughput, modeGameplay, modeUI:
	default:
		return fmt.Errorf("invalid mode %q (must be one of: %s, %s, %s)",
			c.mode, modeThroughput, modeGameplay, modeUI)
	}
	if c.mode == modeUI && c.joinCode == "" {
		return errors.New("--join-code is required in ui mode")
	}
	if c.lobbies < 1 {
		return fmt.Errorf("invalid lobby count: %d", c.lobbies)
	}
	if c.players < 1 {
		return fmt.Errorf("invalid player count: %d", c.players)
	}
	if c.rate <= 0 {
		return fmt.Errorf("invalid message rate: %f", c.rate)
	}
	return nil
}

func (c *Config) apiURL() string {
	return fmt.Sprintf("http://%s/api", c.host)
}

func (c *Config) wsURL() string {
	return fmt.Sprintf("ws://%s/ws", c.host)
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("SPEKTRUM_STRESS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "spektrum-stress",
		Short:         "Load and gameplay simulation against a spektrum server.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		Version:       version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.scenario != "" {
				scenario, err := loadScenario(cfg.scenario)
				if err != nil {
					return err
				}
				scenario.applyTo(cfg)
			}
			if err := cfg.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.mode, "mode", "m", modeGameplay, "test mode: throughput, gameplay or ui (env: SPEKTRUM_STRESS_MODE)")
	fs.StringVar(&cfg.host, "host", "localhost:8765", "server address (env: SPEKTRUM_STRESS_HOST)")
	fs.IntVarP(&cfg.lobbies, "lobbies", "l", 10, "concurrent lobbies, or batch size in gameplay mode (env: SPEKTRUM_STRESS_LOBBIES)")
	fs.IntVarP(&cfg.players, "players", "p", 10, "players per lobby (env: SPEKTRUM_STRESS_PLAYERS)")
	fs.IntVarP(&cfg.rounds, "rounds", "r", 3, "rounds per game in gameplay mode (env: SPEKTRUM_STRESS_ROUNDS)")
	fs.DurationVarP(&cfg.duration, "duration", "d", 60*time.Second, "test duration in throughput mode (env: SPEKTRUM_STRESS_DURATION)")
	fs.StringVarP(&cfg.joinCode, "join-code", "j", "", "join code of an existing lobby, required in ui mode (env: SPEKTRUM_STRESS_JOIN_CODE)")
	fs.Float64Var(&cfg.rate, "rate", 50, "answers per second per player in throughput mode (env: SPEKTRUM_STRESS_RATE)")
	fs.StringVarP(&cfg.scenario, "scenario", "s", "", "path to a yaml scenario file overriding flags (env: SPEKTRUM_STRESS_SCENARIO)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display per-bot output (env: SPEKTRUM_STRESS_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("spektrum-stress v{{.Version}}\n")

	return cmd
}
