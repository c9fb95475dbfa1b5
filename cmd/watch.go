package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mangoautomation/dashboard-data-apis/live"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch <collection> [xid]",
		Short: "Print the changes of a collection as they happen",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			xid := ""
			if len(args) == 2 {
				xid = args[1]
			}
			return runWatch(cmd, args[0], xid)
		},
	}
}

func runWatch(cmd *cobra.Command, collection, xid string) error {
	cfg, err := createConfig()
	if err != nil {
		return err
	}
	client, err := live.NewClient(cfg, collection)
	if err != nil {
		return err
	}
	if token := viper.GetString("token"); token != "" {
		client.WithToken(token)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	colors := map[live.EventType]*color.Color{
		live.Add:    color.New(color.FgGreen),
		live.Update: color.New(color.FgYellow),
		live.Delete: color.New(color.FgRed),
	}
	show := func(event live.Event) {
		data, err := json.Marshal(event.Object)
		if err != nil {
			logger.Warn("unable to encode notification", "xid", event.XID, "error", err)
			return
		}
		colors[event.Type].Fprintf(out, "%-6s %s ", event.Type, event.XID)
		fmt.Fprintln(out, string(data))
	}

	if xid == "" {
		return client.Subscribe(ctx, show)
	}

	watcher := live.NewWatcher[row](xid, nil, logger, func(value row, deleted bool) {
		if deleted {
			show(live.Event{Type: live.Delete, XID: xid, Object: value})
			return
		}
		show(live.Event{Type: live.Update, XID: xid, Object: value})
	})
	return client.Subscribe(ctx, watcher.Handle)
}
