package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"stockledger/internal/domain/ledger"
	"stockledger/internal/subscriber"
)

var serverURL string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a server's ledger events and keep a live snapshot",
	Long: `Connects to the server's event channel, performs a full read and then
applies every event to a local snapshot, reconnecting and resynchronizing
whenever the channel drops. Stops on Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		eventsURL, err := eventsEndpoint(serverURL)
		if err != nil {
			return err
		}

		sess := subscriber.NewSession(subscriber.SessionConfig{
			EventsURL: eventsURL,
			Loader:    subscriber.NewHTTPLoader(serverURL),
			OnResync: func(snap *subscriber.Snapshot) {
				e.log.Infow("snapshot loaded",
					"products", len(snap.Products()),
					"lots", len(snap.Lots()),
					"below_minimum", belowMinimum(snap),
				)
			},
			OnEvent: func(ev ledger.Event, changed bool, snap *subscriber.Snapshot) {
				e.log.Infow("event",
					"seq", ev.Seq,
					"kind", ev.Kind,
					"entity_id", ev.EntityID(),
					"changed", changed,
					"products", len(snap.Products()),
					"lots", len(snap.Lots()),
				)
			},
		})

		e.log.Infow("watching", "server", serverURL)
		return sess.Run(e.ctx)
	},
}

func init() {
	watchCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the stockledger server")
}

// eventsEndpoint maps an http(s) base URL to the websocket events URL.
func eventsEndpoint(base string) (string, error) {
	u, err := url.Parse(strings.TrimRight(base, "/"))
	if err != nil {
		return "", fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid server URL %q: want http or https", base)
	}
	u.Path += "/api/v1/events"
	return u.String(), nil
}

func belowMinimum(snap *subscriber.Snapshot) int {
	n := 0
	for _, p := range snap.Products() {
		if p.BelowMinimum() {
			n++
		}
	}
	return n
}
