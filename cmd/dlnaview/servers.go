package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func serversCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "servers",
		Short: "List discovered media servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			ctx, cancel := context.WithTimeout(context.Background(), app.timeout)
			defer cancel()

			servers, err := app.client.Servers(ctx)
			if err != nil {
				return err
			}
			if app.json {
				return printJSON(servers)
			}

			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tBASE URL")
			for _, server := range servers {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", server.ID, server.FriendlyName, server.BaseURL)
			}
			return tw.Flush()
		},
	}
}
