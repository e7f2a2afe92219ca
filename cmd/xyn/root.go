// Package xyn holds the command line interface of the node.
package xyn

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"xyron.node/xyn/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "xyn",
	Short: "Interval-minting ledger node",
	Long: `xyn runs a single-node ledger that mints a block every fixed interval,
rewarding the wallets validated by the signature authority during that
interval under a capped, halving supply schedule.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a JSON or YAML config file (env XYN_CONFIG)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xyn:", err)
		os.Exit(1)
	}
}

// newViper binds the command's flags and XYN_* environment variables.
func newViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("XYN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	return v, nil
}

// loadConfig reads the config file and applies flag and environment
// overrides on top of it. Only flags that were set explicitly, or have a
// matching environment variable, override file values.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v, err := newViper(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadConfig(v.GetString("config"))
	if err != nil {
		return nil, err
	}

	overrides := map[string]func(){
		"port":              func() { cfg.Port = v.GetInt("port") },
		"data-dir":          func() { cfg.DataDir = v.GetString("data-dir") },
		"authority-network": func() { cfg.AuthorityNetwork = v.GetString("authority-network") },
		"authority-socket":  func() { cfg.AuthoritySocket = v.GetString("authority-socket") },
		"block-interval-ms": func() { cfg.BlockIntervalMs = v.GetInt64("block-interval-ms") },
		"signature-prefix":  func() { cfg.SignaturePrefix = v.GetString("signature-prefix") },
		"log-file":          func() { cfg.LogFile = v.GetString("log-file") },
	}
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if apply, ok := overrides[f.Name]; ok && v.IsSet(f.Name) {
			apply()
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	config.Set(cfg)
	return cfg, nil
}
