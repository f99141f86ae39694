package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/TRENT-OS/os-core-api-sub000/core"
	"github.com/TRENT-OS/os-core-api-sub000/pkg/config"
)

func main() {
	rootCmd := &cobra.Command{Use: "trentosctl"}
	rootCmd.AddCommand(cryptoCmd())
	rootCmd.AddCommand(keystoreCmd())
	rootCmd.AddCommand(configCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func cryptoCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "crypto"}

	digest := &cobra.Command{
		Use:   "digest [message]",
		Short: "compute a SHA-256 digest through the Crypto Core state machine",
		Run: func(cmd *cobra.Command, args []string) {
			msg := ""
			if len(args) > 0 {
				msg = args[0]
			}
			ctx, err := core.NewCryptoContext(core.CryptoConfig{})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer ctx.Close()
			_, d, err := ctx.NewDigest(core.DigestSHA256, core.Attributes{})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if err := d.Process([]byte(msg)); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			sum, err := d.Finalize()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println(hex.EncodeToString(sum))
		},
	}

	randBytes := &cobra.Command{
		Use:   "rand",
		Short: "draw 32 random bytes from the CTR_DRBG RNG",
		Run: func(cmd *cobra.Command, args []string) {
			ctx, err := core.NewCryptoContext(core.CryptoConfig{})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer ctx.Close()
			_, rng, err := ctx.NewRng(core.Attributes{})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			dp := core.NewLocalDataport(core.DefaultDataportSize)
			buf, err := rng.GetBytes(dp, core.RngFlagNone, 32)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println(hex.EncodeToString(buf))
		},
	}

	cmd.AddCommand(digest, randBytes)
	return cmd
}

func keystoreCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "keystore"}

	store := &cobra.Command{
		Use:   "store [name] [value]",
		Short: "store a key blob under name in an in-memory keystore",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Fprintln(os.Stderr, "usage: keystore store <name> <value>")
				os.Exit(1)
			}
			ctx, err := core.NewCryptoContext(core.CryptoConfig{})
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			defer ctx.Close()
			ks, err := core.NewKeystore("default", discardStreamFactory{}, ctx)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if err := ks.StoreKey(args[0], []byte(args[1])); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Println("stored")
		},
	}

	cmd.AddCommand(store)
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config"}

	show := &cobra.Command{
		Use:   "show",
		Short: "load and print the resolved instance configuration",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.LoadFromEnv()
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			fmt.Printf("dataport size: %d bytes\n", cfg.Dataport.SizeBytes)
			fmt.Printf("socket table size: %d\n", cfg.Socket.TableSize)
			fmt.Printf("partitions: %d\n", len(cfg.Partitions))
		},
	}

	cmd.AddCommand(show)
	return cmd
}

// discardStreamFactory is a trivial StreamFactory for CLI demos; it
// discards writes rather than persisting them to disk.
type discardStreamFactory struct{}

func (discardStreamFactory) Open(name string) (io.ReadWriteCloser, error) {
	return discardStream{}, nil
}

type discardStream struct{}

func (discardStream) Read(p []byte) (int, error)  { return 0, io.EOF }
func (discardStream) Write(p []byte) (int, error) { return len(p), nil }
func (discardStream) Close() error                { return nil }
