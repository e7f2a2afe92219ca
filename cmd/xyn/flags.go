package xyn

import (
	"github.com/spf13/cobra"

	"xyron.node/xyn/internal/config"
)

// addNodeFlags registers the overridable config keys on cmd. Defaults are
// shown for help only; unset flags never override the config file.
func addNodeFlags(cmd *cobra.Command) {
	def := config.Defaults()
	f := cmd.Flags()
	f.Int("port", def.Port, "HTTP listen port")
	f.String("data-dir", def.DataDir, "directory holding the state file, block history and index")
	f.String("authority-network", def.AuthorityNetwork, "authority transport: unix or tcp")
	f.String("authority-socket", def.AuthoritySocket, "authority socket path or host:port")
	f.Int64("block-interval-ms", def.BlockIntervalMs, "block interval in milliseconds")
	f.String("signature-prefix", def.SignaturePrefix, "prefix every authority signature must carry")
	f.String("log-file", def.LogFile, "rotating log file")
}
