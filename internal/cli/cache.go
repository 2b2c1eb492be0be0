package cli

import (
	"os"

	"github.com/spf13/cobra"

	perrors "github.com/probelens/probelens/pkg/errors"
)

// newCacheCmd creates the cache command group for managing rendered artifacts.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the local artifact cache",
		Long:  `Manage the on-disk cache of rendered artifacts under the XDG cache directory.`,
	}

	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCachePathCmd())
	return cmd
}

// newCacheClearCmd creates the cache clear subcommand.
func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached artifacts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return perrors.Wrap(perrors.ErrCodeInternal, err, "locate cache directory")
			}
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				printInfo("Cache is already empty")
				return nil
			}
			if err := os.RemoveAll(dir); err != nil {
				return perrors.Wrap(perrors.ErrCodeInternal, err, "clear cache %s", dir)
			}
			printSuccess("Cleared cache")
			printDetail("%s", dir)
			return nil
		},
	}
}

// newCachePathCmd creates the cache path subcommand.
func newCachePathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the cache directory path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := cacheDir()
			if err != nil {
				return perrors.Wrap(perrors.ErrCodeInternal, err, "locate cache directory")
			}
			cmd.Println(dir)
			return nil
		},
	}
}
