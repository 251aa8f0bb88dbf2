package main

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/mmcdole/setlist/internal/tui"
)

func pickCommand(v *viper.Viper, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pick ITEM_ID",
		Short: "Interactively add or remove an item from your playlists",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(v, flags, func(ctx context.Context, _ *cobra.Command, a *app, args []string) error {
			if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("pick needs an interactive terminal")
			}
			a.logger.Info("starting picker", "itemID", args[0])
			return tui.Run(ctx, a.svc, args[0])
		}),
	}
}
