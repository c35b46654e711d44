package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/emmaly/nowplaying/config"
)

const toolVersion = "1.0.0"

var (
	configFile string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:     "nowplaying",
	Version: toolVersion,
	Short:   "Resolve the track playing in Spotify into metadata and cover art.",
	Long: `nowplaying watches the desktop player, looks the current track up on the
Spotify Web API and keeps an overlay, a cover image and optional desktop
notifications in sync with it.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCmd.RunE(cmd, args)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the player and serve the overlay (default)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [title]",
	Short: "Look a display string up once and print the selected track",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return resolveOnce(cmd.Context(), cfg, args[0])
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Fetch an API token and report its lifetime",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return checkToken(cmd.Context(), cfg)
	},
}

var controlCmd = &cobra.Command{
	Use:       "control <next|prev|playpause|stop|volup|voldown|mute>",
	Short:     "Send a playback command to the player",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"next", "prev", "playpause", "stop", "volup", "voldown", "mute"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		ctrl, err := newController(cfg.GetPlayerConfig())
		if err != nil {
			return err
		}
		return sendControl(cmd.Context(), ctrl, args[0])
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		printConfig(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Additional config file, applied last")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(controlCmd)
	rootCmd.AddCommand(configCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if debug {
		cfg.Debug = true
	}
	if cfg.Debug {
		os.Setenv("DEBUG", "1")
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		colorError.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
