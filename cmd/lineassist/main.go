package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/memohai/lineassist/internal/config"
	"github.com/memohai/lineassist/internal/version"
)

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "lineassist",
		Short:        "LINE webhook assistant backed by OpenAI",
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.BindEnv(v)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(v)
		},
	}

	cmd.PersistentFlags().String("config", "", "Config file path (default: $CONFIG_PATH or config.toml).")
	cmd.PersistentFlags().Int("port", 0, "HTTP listen port (overrides config and PORT).")
	_ = v.BindPFlag("config", cmd.PersistentFlags().Lookup("config"))
	_ = v.BindPFlag("server.port", cmd.PersistentFlags().Lookup("port"))
	_ = v.BindEnv("config", "CONFIG_PATH")

	cmd.AddCommand(newServeCmd(v))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		RunE: func(*cobra.Command, []string) error {
			return runServe(v)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "lineassist "+version.GetInfo())
		},
	}
}
