package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func browseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "browse <server-id> [object-id]",
		Short: "List the children of a directory on a server",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), app.timeout)
			defer cancel()

			objectID := "0"
			if len(args) > 1 {
				objectID = args[1]
			}
			reply, err := app.client.Browse(ctx, args[0], objectID)
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(reply)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "TYPE\tID\tTITLE\tDETAIL")
			for _, c := range reply.Containers {
				fmt.Fprintf(tw, "dir\t%s\t%s\t%d children\n", c.ID, c.Title, c.ChildCount)
			}
			for _, item := range reply.Items {
				fmt.Fprintf(tw, "item\t%s\t%s\t%s\n", item.ID, item.Title, item.Mime)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if reply.ParentID != "" {
				fmt.Printf("parent: %s\n", reply.ParentID)
			}
			return nil
		},
	}
}
