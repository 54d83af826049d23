package kv

import (
	"encoding/json"
	"fmt"
	"github.com/ValentinKolb/rKV/lib/proxy"
	"github.com/ValentinKolb/rKV/lib/store"
	"github.com/spf13/cobra"
	"time"
)

// cliStoreName is the name under which the kv commands register the client store
const cliStoreName = "cli"

var (
	setCmd = &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.SetBytes(cmd.Context(), args[0], []byte(args[1])); err != nil {
				return err
			}
			fmt.Println("set successfully")
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			resp, ok, err := rpcStore.GetBytes(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, resp=%s\n", key, ok, resp)
			return nil
		},
	}
	sizeCmd = &cobra.Command{
		Use:   "size [key]",
		Short: "Prints the size of the value for a key in bytes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			size, ok, err := rpcStore.GetSize(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%v, size=%d\n", key, ok, size)
			return nil
		},
	}
	existsCmd = &cobra.Command{
		Use:   "exists [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			found, err := rpcStore.Exists(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Printf("key=%s, found=%t\n", key, found)
			return nil
		},
	}
	timestampCmd = &cobra.Command{
		Use:   "timestamp [key]",
		Short: "Prints when the current value of a key was written",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]
			ts, err := rpcStore.GetTimestamp(cmd.Context(), key)
			if err != nil {
				return err
			}
			sec := int64(ts)
			written := time.Unix(sec, int64((ts-float64(sec))*1e9))
			fmt.Printf("key=%s, timestamp=%s (%s)\n", key, store.FormatTimestamp(ts), written.Format(time.RFC3339Nano))
			return nil
		},
	}
	evictCmd = &cobra.Command{
		Use:   "evict [key]",
		Short: "Evicts a key from the client cache (the provider keeps the value)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := rpcStore.Evict(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("evict successfully")
			return nil
		},
	}
	proxyCmd = &cobra.Command{
		Use:   "proxy [value]",
		Short: "Stores a string and prints the factory of a proxy for it (as JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := store.New(cliStoreName, rpcStore, store.DefaultOptions())
			if err != nil {
				return err
			}

			var opts []proxy.Option
			if evict, _ := cmd.Flags().GetBool("evict"); evict {
				opts = append(opts, proxy.WithEvict())
			}
			if key, _ := cmd.Flags().GetString("key"); key != "" {
				opts = append(opts, proxy.WithKey(key))
			}

			p, err := proxy.New(cmd.Context(), s, args[0], opts...)
			if err != nil {
				return err
			}
			data, err := json.Marshal(p)
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
	resolveCmd = &cobra.Command{
		Use:   "resolve [factory]",
		Short: "Resolves a proxy from its JSON factory (as printed by proxy)",
		Long:  "Resolves a proxy from its JSON factory. The store is reconstructed from the parameters in the factory, the client flags are not used for the lookup.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p proxy.Proxy[string]
			if err := json.Unmarshal([]byte(args[0]), &p); err != nil {
				return fmt.Errorf("invalid factory: %w", err)
			}

			v, err := p.Value(cmd.Context())
			if err != nil {
				return err
			}

			f := p.Factory()
			if s, ok := store.Lookup(f.Store); ok {
				defer s.Close()
			}
			fmt.Printf("key=%s, value=%s\n", f.Key, v)
			return nil
		},
	}
)

func init() {
	proxyCmd.Flags().Bool("evict", false, "Evict the value once the proxy is resolved")
	proxyCmd.Flags().String("key", "", "Key to store the value under (default: generated)")
}
