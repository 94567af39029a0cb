// Command storefront is a headless storefront client: it fetches the
// eligible timers for a simulated visitor context, mounts them, and
// prints the rendered markup while the countdowns tick. Useful for
// poking at a running engine without a theme.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"timer-delivery-engine/internal/client"
	"timer-delivery-engine/internal/timer"
)

func main() {
	var (
		endpoint  string
		secret    string
		shop      string
		pageType  string
		pageURL   string
		productID string
		country   string
		tags      string
		statePath string
		watch     time.Duration
	)

	root := &cobra.Command{
		Use:   "storefront",
		Short: "Headless storefront timer client",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

			if statePath == "" {
				statePath = filepath.Join(os.TempDir(), "storefront-timers.json")
			}
			store, err := client.OpenFileStore(statePath)
			if err != nil {
				return err
			}

			rt := &client.Runtime{
				Client:         &client.Client{Endpoint: endpoint, Secret: secret, Logger: logger},
				Store:          store,
				ProductAnchors: []*client.Anchor{{}},
			}

			vctx := timer.VisitorContext{
				Shop:        shop,
				PageType:    pageType,
				PageURL:     pageURL,
				ProductID:   productID,
				Country:     strings.ToUpper(country),
				ProductTags: splitCSV(tags),
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			mounted := rt.Mount(ctx, vctx)
			logger.Info().Int("mounted", len(mounted)).Msg("timers mounted")
			if len(mounted) == 0 {
				return nil
			}

			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			deadline := time.After(watch)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-deadline:
					return nil
				case <-ticker.C:
					for _, a := range rt.ProductAnchors {
						if a.Mounted() {
							fmt.Println(a.HTML())
						}
					}
					for _, a := range rt.Bars() {
						if a.Mounted() {
							fmt.Println(a.HTML())
						}
					}
				}
			}
		},
	}

	root.Flags().StringVar(&endpoint, "endpoint", "http://localhost:8080/proxy/timers", "delivery endpoint")
	root.Flags().StringVar(&secret, "secret", os.Getenv("APP_PROXY_SECRET"), "shared secret for self-signing")
	root.Flags().StringVar(&shop, "shop", "demo.myshop.test", "shop domain")
	root.Flags().StringVar(&pageType, "page-type", "home", "page type (home|product|collection|cart|page)")
	root.Flags().StringVar(&pageURL, "page-url", "", "current page URL")
	root.Flags().StringVar(&productID, "product-id", "", "current product id")
	root.Flags().StringVar(&country, "country", "", "visitor ISO country code")
	root.Flags().StringVar(&tags, "product-tags", "", "comma-separated product tags")
	root.Flags().StringVar(&statePath, "state", "", "path of the durable KV file")
	root.Flags().DurationVar(&watch, "watch", 10*time.Second, "how long to print frames")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToLower(p))
		}
	}
	return out
}
