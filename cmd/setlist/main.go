package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags
var Version = "dev"

// flags shared by every command
type rootFlags struct {
	configFile string
	verbose    int
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	flags := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:           "setlist",
		Short:         "See and change which of your playlists contain an item",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configFile, "config", "c", "", "Config file (default ~/.config/setlist/config.yaml)")
	rootCmd.PersistentFlags().CountVarP(&flags.verbose, "verbose", "v", "Verbose logging")
	rootCmd.PersistentFlags().Int("concurrency", 0, "Playlists fetched in parallel")
	v.BindPFlag("membership.concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))

	rootCmd.AddCommand(
		rebuildCommand(v, flags),
		membershipCommand(v, flags),
		toggleCommand(v, flags, "add"),
		toggleCommand(v, flags, "remove"),
		statusCommand(v, flags),
		pickCommand(v, flags),
		initCommand(v, flags),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
