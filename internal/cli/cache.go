package cli

import (
	"bytes"
	"encoding/json"
	"fmt"

	"stockadvisor/internal/cache"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the fundamentals cache",
	}
	cmd.AddCommand(
		newCacheShowCmd(),
		newCacheDeleteCmd(),
		newCacheListCmd(),
		newCacheStatsCmd(),
		newCacheClearCmd(),
		newCachePurgeCmd(),
	)
	return cmd
}

func newCacheShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show TICKER",
		Short: "Print the cached fundamentals document for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			key := cache.NormalizeKey(args[0])
			entry, ok, err := store.Lookup(cmd.Context(), key)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(w, warnStyle.Render("not cached ")+key)
				return nil
			}
			status := okStyle.Render("valid")
			if store.IsExpired(entry) {
				status = warnStyle.Render("expired")
			}
			ts := entry.CachedAt
			printTitle(w, entry.Key)
			fmt.Fprintf(w, "cached at: %s  %s\n", formatTime(&ts), status)
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, entry.Payload, "", "  "); err != nil {
				pretty.Reset()
				pretty.Write(entry.Payload)
			}
			fmt.Fprintln(w, pretty.String())
			return nil
		},
	}
}

func newCacheDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete TICKER...",
		Short: "Delete cached entries for one or more tickers",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			w := cmd.OutOrStdout()
			for _, ticker := range args {
				ok, err := store.Delete(cmd.Context(), ticker)
				if err != nil {
					return err
				}
				key := cache.NormalizeKey(ticker)
				if ok {
					fmt.Fprintln(w, okStyle.Render("deleted ")+key)
				} else {
					fmt.Fprintln(w, warnStyle.Render("not cached ")+key)
				}
			}
			return nil
		},
	}
}

func newCacheListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached tickers, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			entries, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, mutedStyle.Render("cache is empty"))
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				status := "valid"
				if store.IsExpired(e) {
					status = "expired"
				}
				ts := e.CachedAt
				rows = append(rows, []string{e.Key, formatTime(&ts), status})
			}
			table(w, []string{"TICKER", "CACHED AT", "STATUS"}, rows)
			return nil
		},
	}
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cache statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			printTitle(w, "Fundamentals cache")
			printBox(w,
				fmt.Sprintf("path:    %s", store.Path()),
				fmt.Sprintf("ttl:     %s", st.TTL),
				fmt.Sprintf("entries: %d (valid %d, expired %d)", st.Total, st.Valid, st.Expired),
				fmt.Sprintf("oldest:  %s", formatTime(st.Oldest)),
				fmt.Sprintf("newest:  %s", formatTime(st.Newest)),
				fmt.Sprintf("size:    %.1f KB", float64(st.SizeBytes)/1024),
			)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear-all",
		Short: "Delete every cached entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				confirm := false
				if err := survey.AskOne(&survey.Confirm{
					Message: "Delete ALL cached fundamentals?",
					Default: false,
				}, &confirm); err != nil {
					return err
				}
				if !confirm {
					fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("aborted"))
					return nil
				}
			}
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.Clear(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("cleared %d entries", n)))
			return nil
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func newCachePurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-expired",
		Short: "Delete entries older than the TTL",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache(cmd)
			if err != nil {
				return err
			}
			defer store.Close()
			n, err := store.PurgeExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("purged %d expired entries", n)))
			return nil
		},
	}
}
