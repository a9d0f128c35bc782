package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/certusone/wormhole/connect/pkg/config"
	"github.com/certusone/wormhole/connect/pkg/registry"
	"github.com/certusone/wormhole/connect/pkg/version"
	ipfslog "github.com/ipfs/go-log/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// envPrefix of the environment variables overriding config file settings, e.g. CONNECT_NETWORK.
const envPrefix = "CONNECT"

// cli is the state shared by all subcommands of one invocation.
type cli struct {
	cfgFile  string
	logLevel string

	logger *zap.Logger
	cfg    *config.Config
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:               "connect",
		Short:             "Token bridge client: fetch attestations, inspect and redeem transfers",
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "config file (default is $HOME/.connect.yaml)")
	flags.StringVar(&c.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	flags.String("network", "", "guardian network: mainnet, testnet or devnet")
	flags.StringSlice("guardian_hosts", nil, "guardian REST endpoints, overriding the network's")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Display binary version information",
		// No configuration needed.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Version())
		},
	}

	rootCmd.AddCommand(
		versionCmd,
		c.vaaCmd(),
		c.addressCmd(),
		c.assetCmd(),
		c.transferCmd(),
	)
	return rootCmd
}

// Execute runs the command line. This is called by main.main().
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	lvl, err := ipfslog.LevelFromString(c.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q", c.logLevel)
	}
	ipfslog.SetAllLoggers(lvl)
	c.logger = ipfslog.Logger("connect").Desugar()

	cfgFile := c.cfgFile
	if cfgFile == "" {
		cfgFile = defaultConfigFile()
	}
	cfg, err := config.Load(config.Options{
		FilePath:  cfgFile,
		EnvPrefix: envPrefix,
		Flags:     cmd.Flags(),
	})
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.logger.Debug("loaded configuration", zap.String("file", cfgFile), zap.String("network", cfg.Network))
	return nil
}

// defaultConfigFile returns $HOME/.connect.yaml if it exists.
func defaultConfigFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".connect.yaml")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return ""
	}
	return path
}

// withRegistry runs f with a registry built from the loaded configuration and closes it afterwards.
func (c *cli) withRegistry(cmd *cobra.Command, f func(ctx context.Context, r *registry.Registry) error) error {
	r, err := registry.New(c.logger, c.cfg)
	if err != nil {
		return err
	}
	defer r.Close()
	return f(cmd.Context(), r)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
