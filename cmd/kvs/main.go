// Command kvs is the command-line front end for the store: a thin shell
// around pkg/ignite that opens the store rooted at the current working
// directory, runs exactly one get/set/rm/compact operation, and exits.
package main

import (
	"context"
	stdErrors "errors"
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/iamNilotpal/ignite/internal/engine"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/ignite"
	"github.com/iamNilotpal/ignite/pkg/options"
	"github.com/spf13/cobra"
)

// validateUTF8 rejects a command-line argument that isn't valid UTF-8.
// os.Args preserves raw bytes verbatim, so a shell can hand the CLI
// arbitrary binary garbage under a flag meant to hold a key or value;
// only the front end needs to reject that, since every byte that makes
// it into the engine is trusted to already be valid text.
func validateUTF8(field, value string) error {
	if !utf8.ValidString(value) {
		return errors.NewEncodingError(nil, field)
	}
	return nil
}

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// The CLI talks to a terminal, not a log aggregator, so it asks the
	// store for the human-readable development logger instead of the
	// default production JSON encoder.
	os.Setenv("IGNITE_DEV_LOGS", "1")

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kvs",
		Short: "kvs is a single-node, embedded key/value store",
		RunE: func(cmd *cobra.Command, args []string) error {
			showVersion, _ := cmd.Flags().GetBool("version")
			if showVersion {
				fmt.Println(version)
				return nil
			}
			return cmd.Help()
		},
	}
	root.Flags().BoolP("version", "V", false, "print version information")

	root.AddCommand(newGetCmd(), newSetCmd(), newRmCmd(), newCompactCmd())
	return root
}

func openStore(ctx context.Context) (*ignite.Instance, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	return ignite.NewInstance(ctx, "kvs", options.WithDataDir(dir))
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "print the value stored under a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUTF8("key", args[0]); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			value, found, err := store.Get(ctx, args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Println("Key not found")
				return nil
			}

			fmt.Println(string(value))
			return nil
		},
	}
}

func newSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "store a value under a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUTF8("key", args[0]); err != nil {
				return err
			}
			if err := validateUTF8("value", args[1]); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			return store.Set(ctx, args[0], []byte(args[1]))
		},
	}
}

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <key>",
		Short: "remove a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUTF8("key", args[0]); err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			if err := store.Remove(ctx, args[0]); err != nil {
				if stdErrors.Is(err, engine.ErrKeyNotFound) {
					fmt.Println("Key not found")
					os.Exit(1)
				}
				return err
			}
			return nil
		},
	}
}

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "merge segments to reclaim space held by overwritten and deleted keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close(ctx)

			result, err := store.Compact(ctx)
			if err != nil {
				return err
			}

			fmt.Printf(
				"compacted %d segments, rewrote %d keys, wrote %d bytes\n",
				result.SegmentsRemoved, result.KeysRewritten, result.BytesWritten,
			)
			return nil
		},
	}
}
