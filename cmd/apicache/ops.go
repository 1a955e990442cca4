package main

import (
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/krisalay/api-cache/types"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the cached data for a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Init(cmd, nil)
		if err != nil {
			return err
		}
		defer Release(r)

		ent, ok := r.Cache.Lookup(cmd.Context(), args[0])
		if !ok {
			return errors.Errorf("no valid entry for %s", args[0])
		}
		if meta, _ := cmd.Flags().GetBool("meta"); meta {
			fmt.Printf("stored  : %s\n", time.UnixMilli(ent.Timestamp).Format(time.RFC3339))
			fmt.Printf("expires : %s\n", time.UnixMilli(ent.ExpiresAt).Format(time.RFC3339))
		}
		out, err := types.Codec.MarshalIndent(ent.Data, "", "  ")
		if err != nil {
			return errors.Wrapf(err, "failed to print %s", args[0])
		}
		fmt.Println(string(out))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value; valid JSON is stored as JSON, anything else as a string",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ttl, _ := cmd.Flags().GetDuration("ttl")
		r, err := Init(cmd, nil)
		if err != nil {
			return err
		}
		defer Release(r)

		var data any = args[1]
		if types.Codec.Valid([]byte(args[1])) {
			data = jsoniter.RawMessage(args[1])
		}
		r.Cache.Set(cmd.Context(), args[0], data, ttl)
		fmt.Printf("Stored [%s]\n", args[0])
		return nil
	},
}

var invalidateCmd = &cobra.Command{
	Use:   "invalidate [key]...",
	Short: "Remove keys from both tiers",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Init(cmd, nil)
		if err != nil {
			return err
		}
		defer Release(r)

		for _, key := range args {
			r.Cache.Invalidate(cmd.Context(), key)
			fmt.Printf("Invalidated [%s]\n", key)
		}
		return nil
	},
}

var invalidatePatternCmd = &cobra.Command{
	Use:   "invalidate-pattern [substring]",
	Short: "Remove every key containing a substring",
	Long: `Remove every key containing a substring.

Only keys resident in memory are matched unless APICACHE_SCAN_PERSISTED is
set. A fresh process has nothing in memory, so from the command line this is
mostly useful together with that setting.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Init(cmd, nil)
		if err != nil {
			return err
		}
		defer Release(r)

		if !r.Config.ScanPersisted {
			fmt.Println("Note: persisted-only keys are not scanned (APICACHE_SCAN_PERSISTED=false)")
		}
		r.Cache.InvalidatePattern(cmd.Context(), args[0])
		fmt.Printf("Invalidated keys containing [%s]\n", args[0])
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry, leaving other keys in the store alone",
	RunE: func(cmd *cobra.Command, args []string) error {
		if force, _ := cmd.Flags().GetBool("force"); !force {
			fmt.Print("Are you sure you want to clear the cache? [y/N]: ")
			var confirm string
			fmt.Scanln(&confirm)
			if confirm != "y" && confirm != "Y" {
				fmt.Println("Clear cancelled.")
				return nil
			}
		}
		r, err := Init(cmd, nil)
		if err != nil {
			return err
		}
		defer Release(r)

		r.Cache.Clear(cmd.Context())
		fmt.Println("Cache cleared")
		return nil
	},
}

var sizeCmd = &cobra.Command{
	Use:   "size",
	Short: "Print the number of memory-resident entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := Init(cmd, nil)
		if err != nil {
			return err
		}
		defer Release(r)

		if warm, _ := cmd.Flags().GetStringSlice("warm"); len(warm) > 0 {
			for _, key := range warm {
				r.Cache.Get(cmd.Context(), key)
			}
		}
		fmt.Println(r.Cache.Size())
		return nil
	},
}

func init() {
	getCmd.Flags().Bool("meta", false, "also print when the entry was stored and when it expires")
	setCmd.Flags().Duration("ttl", types.DefaultTTL, "time to live")
	clearCmd.Flags().BoolP("force", "f", false, "do not ask for confirmation")
	sizeCmd.Flags().StringSlice("warm", nil, "keys to read (and promote) before counting")

	RootCmd.AddCommand(getCmd, setCmd, invalidateCmd, invalidatePatternCmd, clearCmd, sizeCmd)
}
