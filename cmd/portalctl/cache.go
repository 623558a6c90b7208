package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"vendorrisk/internal/clientcache"
)

func newCacheCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the local view cache",
	}
	cmd.AddCommand(newCacheShowCmd(opts), newCacheClearCmd(opts))
	return cmd
}

func newCacheShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "List cached views with their validators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := opts.storage()
			if err != nil {
				return err
			}
			keys, err := storage.Keys()
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				cmd.Println("cache is empty")
				return nil
			}

			store := clientcache.NewStore(storage)
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tVALIDATOR\tFETCHED\tBYTES")
			for _, key := range keys {
				entry, ok := store.Get(key)
				if !ok {
					continue
				}
				fetched := time.UnixMilli(entry.FetchedAt).Format(time.RFC3339)
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", key, entry.Validator, fetched, len(entry.Value))
			}
			return w.Flush()
		},
	}
}

func newCacheClearCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [key]",
		Short: "Remove one cached view, or all of them",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			storage, err := opts.storage()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				clientcache.NewStore(storage).Delete(args[0])
				cmd.Printf("removed %s\n", args[0])
				return nil
			}
			if err := storage.Clear(); err != nil {
				return err
			}
			cmd.Println("cache cleared")
			return nil
		},
	}
}
