package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mmcdole/setlist/internal/domain"
	"github.com/mmcdole/setlist/internal/membership"
)

func rebuildCommand(v *viper.Viper, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Fetch every editable playlist and build the membership index",
		Args:  cobra.NoArgs,
		RunE: withApp(v, flags, func(ctx context.Context, cmd *cobra.Command, a *app, _ []string) error {
			result, err := a.rebuild(ctx, cmd)
			printResult(cmd, result)
			return err
		}),
	}
}

func printResult(cmd *cobra.Command, result *membership.Result) {
	if result == nil {
		return
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: %d playlists, %s items in %s\n",
		result.State,
		result.Playlists,
		humanize.Comma(int64(result.Items)),
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond),
	)

	ids := make([]string, 0, len(result.Missing))
	for id := range result.Missing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(out, "  missing %s: %v\n", id, result.Missing[id])
	}
}

func membershipCommand(v *viper.Viper, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "membership ITEM_ID",
		Short: "List the playlists that contain an item",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(v, flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.rebuild(ctx, cmd); err != nil {
				return err
			}
			printMembership(cmd, a, args[0])
			return nil
		}),
	}
}

func printMembership(cmd *cobra.Command, a *app, itemID string) {
	snap := a.svc.Snapshot()
	for _, p := range snap.Playlists() {
		mark := "[ ]"
		if snap.Contains(itemID, p.ID) {
			mark = "[x]"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", mark, p.Title, p.GetDescription())
	}
}

func toggleCommand(v *viper.Viper, flags *rootFlags, verb string) *cobra.Command {
	dir := domain.DirectionAdd
	short := "Add an item to a playlist"
	if verb == "remove" {
		dir = domain.DirectionRemove
		short = "Remove an item from a playlist"
	}

	return &cobra.Command{
		Use:   verb + " ITEM_ID PLAYLIST",
		Short: short,
		Long:  short + ". PLAYLIST is a playlist id or (part of) its title.",
		Args:  cobra.ExactArgs(2),
		RunE: withApp(v, flags, func(ctx context.Context, cmd *cobra.Command, a *app, args []string) error {
			if _, err := a.rebuild(ctx, cmd); err != nil {
				return err
			}

			p, err := a.svc.Resolve(args[1])
			if err != nil {
				return err
			}
			if _, err := a.svc.ToggleQueued(ctx, args[0], p.ID, dir); err != nil {
				return err
			}
			printMembership(cmd, a, args[0])
			return nil
		}),
	}
}
