package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func playCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "play <media-url>",
		Short: "Print the proxy URL that streams a media resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromContext(cmd)
			if args[0] == "" {
				return errors.New("media url required")
			}
			if app.json {
				return printJSON(map[string]string{"url": app.client.ProxyURL(args[0])})
			}
			fmt.Println(app.client.ProxyURL(args[0]))
			return nil
		},
	}
}
