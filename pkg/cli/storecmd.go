package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbrumbaugh5396/meta/internal/cliutil"
	"github.com/tbrumbaugh5396/meta/internal/store"
	"github.com/tbrumbaugh5396/meta/pkg/console"
)

// NewStoreCommand creates the store command group: query and delete
// against the content-addressed store directly by hash.
func NewStoreCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Query and manage the content-addressed store by hash",
	}
	cmd.AddCommand(newStoreQueryCommand(), newStoreDeleteCommand())
	return cmd
}

func newStoreQueryCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "query <hash>",
		Short: "Show the metadata recorded for a store entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			md, err := r.Store.Query(store.Hash(args[0]))
			if err != nil {
				return err
			}
			if md == nil {
				return fmt.Errorf("no store entry for hash %s", args[0])
			}
			fmt.Print(console.RenderTable(console.TableConfig{
				Title:   fmt.Sprintf("store entry: %s", args[0]),
				Headers: []string{"component", "inputs digest", "created", "references"},
				Rows: [][]string{{
					md.Component, md.InputsDigest,
					md.CreatedAt.Format(time.RFC3339),
					fmt.Sprintf("%d", len(md.References)),
				}},
			}))
			return nil
		},
	}
}

func newStoreDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <hash>",
		Short: "Delete a store entry outright, bypassing GC's reachability check",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Store.Delete(store.Hash(args[0])); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("deleted store entry %s", args[0])))
			return nil
		},
	}
}

// NewCacheCommand creates the cache command group: lookup and
// invalidate against the build cache's component/version keys.
func NewCacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Look up and invalidate build-cache entries",
	}
	cmd.AddCommand(newCacheLookupCommand(), newCacheInvalidateCommand())
	return cmd
}

func newCacheLookupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <component> <version>",
		Short: "Show whether a component/version build-cache entry is a hit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			key := store.CacheKey(args[0], args[1], "", nil, [32]byte{})
			hash, ok, err := r.Store.Lookup(key)
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println(console.FormatInfoMessage(fmt.Sprintf("cache miss for %s@%s", args[0], args[1])))
				return nil
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("cache hit for %s@%s -> %s", args[0], args[1], hash)))
			return nil
		},
	}
}

func newCacheInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <component>",
		Short: "Invalidate every cache entry recorded for a component",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{})
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.Store.InvalidateComponent(args[0]); err != nil {
				return err
			}
			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf("invalidated cache entries for %s", args[0])))
			return nil
		},
	}
}

// NewGCCommand creates the gc command: mark-and-sweep the store
// against every environment's lock file, plus TTL-based cache
// expiry.
func NewGCCommand() *cobra.Command {
	var ttl time.Duration
	var envs []string

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Remove store entries with no live reference and expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := cliutil.NewRuntime(cliutil.Options{LoadManifest: true})
			if err != nil {
				return err
			}
			defer r.Close()

			if len(envs) == 0 {
				for name := range r.Manifest.Environments {
					envs = append(envs, name)
				}
			}

			result, err := r.Store.GC(func() (map[store.Hash]bool, error) {
				return r.LiveStoreRoots(envs)
			}, ttl)
			if err != nil {
				return err
			}

			fmt.Println(console.FormatSuccessMessage(fmt.Sprintf(
				"gc: deleted %d store entry(ies), expired %d cache entry(ies)",
				len(result.StoreEntriesDeleted), len(result.CacheEntriesExpired))))
			return nil
		},
	}

	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "Cache entries older than this are expired regardless of store referent")
	cmd.Flags().StringSliceVar(&envs, "env", nil, "Environments to check for live lock references (default: every environment)")
	return cmd
}
