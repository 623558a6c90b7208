package main

import (
	"os"

	"github.com/spf13/cobra"

	"vendorrisk/internal/clientcache"
	"vendorrisk/internal/version"
)

type options struct {
	cacheFile string
}

func (o *options) storage() (*clientcache.FileStorage, error) {
	path := o.cacheFile
	if path == "" {
		var err error
		if path, err = clientcache.DefaultFileStoragePath(); err != nil {
			return nil, err
		}
	}
	return clientcache.NewFileStorage(path), nil
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "portalctl",
		Short: "Vendor risk portal client",
		Long: `portalctl fetches portal views and caches them locally.

Each view is stored with the validator the server issued for it, so repeated
fetches of an unchanged view are answered with 304 Not Modified.`,
		Version:       version.Info(),
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.cacheFile, "cache-file", os.Getenv("PORTALCTL_CACHE"),
		"cache document (default <user cache dir>/vendorrisk/cache.json)")

	root.AddCommand(newGetCmd(opts), newCacheCmd(opts), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(version.Info())
		},
	}
}
