package xyn

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"xyron.node/xyn/internal/authority"
	"xyron.node/xyn/internal/logger"
)

var authorityCmd = &cobra.Command{
	Use:   "authority",
	Short: "Run the development signature authority on the configured socket",
	Long: `authority serves the bridge wire protocol on the configured socket and
answers every request with a verified, prefixed signature. It is meant for
local runs and tests; it does not sign anything cryptographically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		log := logger.New(100, cmd.ErrOrStderr()).With("AUTHORITY")
		srv := authority.NewServer(cfg.AuthorityNetwork, cfg.AuthoritySocket, cfg.SignaturePrefix, log)
		if err := srv.Listen(); err != nil {
			return err
		}
		defer srv.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Serve(ctx)
	},
}

func init() {
	addNodeFlags(authorityCmd)
	rootCmd.AddCommand(authorityCmd)
}
