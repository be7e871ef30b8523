package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dlnaview/dlnaview/pkg/api"
)

type app struct {
	client  *api.Client
	json    bool
	timeout time.Duration
}

type appKey struct{}

func main() {
	root := &cobra.Command{
		Use:   "dlnaview",
		Short: "Browse DLNA media servers through a dlnaviewd instance",
	}

	var (
		apiBase string
		timeout time.Duration
		jsonOut bool
	)

	root.PersistentFlags().StringVarP(&apiBase, "api", "a", "http://127.0.0.1:8080", "dlnaviewd API base URL")
	root.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 10*time.Second, "request timeout")
	root.PersistentFlags().BoolVarP(&jsonOut, "json", "j", false, "output json")

	root.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, &app{
			client:  api.NewClient(apiBase, timeout),
			json:    jsonOut,
			timeout: timeout,
		}))
	}

	root.AddCommand(serversCommand())
	root.AddCommand(browseCommand())
	root.AddCommand(playCommand())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func fromContext(cmd *cobra.Command) *app {
	val := cmd.Context().Value(appKey{})
	if val == nil {
		return nil
	}
	return val.(*app)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
