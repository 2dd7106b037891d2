package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dukerupert/famboard/internal/logging"
	"github.com/dukerupert/famboard/internal/syncclient"
)

var (
	watchServer string
	watchToken  string
)

// watch is a headless screen: it keeps the full client state fresh and
// reports every refetch.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a famboard server's push channel and refetch on every change",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, logFile := logging.Setup(cfg.Log.Level, logging.FileConfig{})
		defer logFile.Close()

		wsURL, err := pushURL(watchServer)
		if err != nil {
			return err
		}
		header := http.Header{}
		header.Set("Authorization", "Bearer "+watchToken)

		cache := syncclient.NewCache()
		out := cmd.OutOrStdout()
		client := syncclient.New(syncclient.Config{
			URL:          wsURL,
			Header:       header,
			Fetches:      syncclient.HTTPFetches(watchServer, header, nil, cache),
			FetchTimeout: cfg.Sync.FetchTimeout,
			Logger:       logger,
			OnState: func(s syncclient.State) {
				fmt.Fprintf(out, "channel %s\n", s)
			},
			OnRefresh: func(err error) {
				if err != nil {
					fmt.Fprintf(out, "refetch failed: %v\n", err)
					return
				}
				fmt.Fprintf(out, "refetched %d resources at %s\n", len(syncclient.Resources), cache.Updated().Format("15:04:05"))
			},
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return client.Run(ctx)
	},
}

// pushURL turns http://host:port into ws://host:port/dashboard/ws.
func pushURL(server string) (string, error) {
	u, err := url.Parse(strings.TrimSuffix(server, "/"))
	if err != nil {
		return "", fmt.Errorf("parse server url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("server url must be http or https, got %q", server)
	}
	u.Path += "/dashboard/ws"
	return u.String(), nil
}

func init() {
	watchCmd.Flags().StringVar(&watchServer, "server", "http://localhost:8080", "famboard server URL")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "session token (see: famboard session create)")
	watchCmd.MarkFlagRequired("token")
}
