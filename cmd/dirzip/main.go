package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dirzip/internal/app"
	"dirzip/internal/config"
	"dirzip/internal/export"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// configFlag holds --config; empty means DIRZIP_CONFIG_PATH or the default.
var configFlag string

// newApp reads the config and creates a DirZipApp. The caller must defer app.Close().
func newApp(command string, args []string) (*app.DirZipApp, error) {
	defaults, err := app.GetDefaults(configFlag)
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewDirZipApp(cfg, command, strings.Join(args, " "))
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// readPassphrase prompts for a passphrase without echo. DIRZIP_PASSPHRASE
// is used instead when set, for scripted use.
func readPassphrase(prompt string, confirm bool) (string, error) {
	if p := os.Getenv("DIRZIP_PASSPHRASE"); p != "" {
		return p, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal to read the passphrase from; set DIRZIP_PASSPHRASE")
	}

	fmt.Fprint(os.Stderr, prompt)
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	if len(first) == 0 {
		return "", errors.New("empty passphrase")
	}
	if confirm {
		fmt.Fprint(os.Stderr, "Confirm passphrase: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		if string(first) != string(second) {
			return "", errors.New("passphrases do not match")
		}
	}
	return string(first), nil
}

var rootCmd = &cobra.Command{
	Use:          "dirzip",
	Short:        "Stream directories as ZIP archives",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults(configFlag)
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}
		if err := os.MkdirAll(cfg.Server.FolderRoot, 0o755); err != nil {
			return fmt.Errorf("creating folder root: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir:    %s\n", cfg.BaseDir)
		fmt.Printf("Folder Root: %s\n", cfg.Server.FolderRoot)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults(configFlag)
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		m := &config.Manager{}
		return m.Write(os.Stdout, cfg)
	},
}

// serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve folder downloads over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("serve", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()
		return a.Serve(ctx)
	},
}

// pack command
var packCmd = &cobra.Command{
	Use:   "pack DIR",
	Short: "Write a directory's archive to stdout, a file or S3",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		to, _ := cmd.Flags().GetString("to")
		noLength, _ := cmd.Flags().GetBool("no-length")
		encrypt, _ := cmd.Flags().GetBool("encrypt")
		force, _ := cmd.Flags().GetBool("force")

		a, err := newApp("pack", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		res, err := a.Pack(ctx, args[0], app.PackOptions{
			To:       to,
			NoLength: noLength,
			Encrypt:  encrypt,
			Force:    force,
		})
		if errors.Is(err, export.ErrTerminal) {
			return fmt.Errorf("%w; use --to FILE or --force", err)
		}
		if err != nil {
			return fmt.Errorf("pack failed: %w", err)
		}

		fmt.Fprintf(os.Stderr, "Packed %d file(s), %d bytes to %s\n",
			res.Stats.Files, res.Stats.BytesWritten, res.Destination)
		return nil
	},
}

// size command
var sizeCmd = &cobra.Command{
	Use:   "size DIR",
	Short: "Print the exact archive length of a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("size", args)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signalContext()
		defer stop()

		n, err := a.Size(ctx, args[0])
		if err != nil {
			return fmt.Errorf("sizing failed: %w", err)
		}
		fmt.Println(n)
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View transfer history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("history", args)
		if err != nil {
			return err
		}
		defer a.Close()

		transfers, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(transfers) == 0 {
			fmt.Println("No transfers recorded.")
			return nil
		}

		for _, tr := range transfers {
			duration := ""
			if tr.FinishedAt.Valid {
				d := tr.FinishedAt.Time.Sub(tr.StartedAt)
				duration = d.Truncate(time.Millisecond).String()
			}
			state := tr.State
			if tr.Reason != "" && tr.Reason != tr.State {
				state += " (" + tr.Reason + ")"
			}
			fmt.Printf("%s  %-4s  %s  %-28s  %6d files  %12d bytes  %-20s  %s\n",
				tr.ID[:8],
				tr.Mode,
				tr.StartedAt.Local().Format("2006-01-02 15:04:05"),
				state,
				tr.Files,
				tr.BytesWritten,
				tr.Folder,
				duration,
			)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage export encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the export key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("keys init", args)
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase("Passphrase for the private key: ", true)
		if err != nil {
			return err
		}
		if err := a.KeysInit(passphrase); err != nil {
			return fmt.Errorf("generating keys: %w", err)
		}
		fmt.Println("Key pair generated.")
		return nil
	},
}

var keysDecryptCmd = &cobra.Command{
	Use:   "decrypt FILE",
	Short: "Decrypt an encrypted export",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")

		a, err := newApp("keys decrypt", args)
		if err != nil {
			return err
		}
		defer a.Close()

		in, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer in.Close()

		dst, err := export.NewFileDestination(out)
		if err != nil {
			return fmt.Errorf("opening output: %w", err)
		}

		passphrase, err := readPassphrase("Passphrase: ", false)
		if err != nil {
			dst.Finish(err)
			return err
		}
		err = a.Decrypt(passphrase, in, dst)
		if ferr := dst.Finish(err); ferr != nil && err == nil {
			err = ferr
		}
		if err != nil {
			return fmt.Errorf("decrypting: %w", err)
		}
		fmt.Printf("Decrypted to %s\n", out)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default $DIRZIP_CONFIG_PATH or ~/.config/dirzip.toml)")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)
	keysCmd.AddCommand(keysDecryptCmd)
	keysDecryptCmd.Flags().StringP("out", "o", "", "Where to write the decrypted archive")
	keysDecryptCmd.MarkFlagRequired("out")

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().String("to", "-", "Destination: - (stdout), a file path or s3://bucket/key")
	packCmd.Flags().Bool("no-length", false, "Skip computing the archive length first")
	packCmd.Flags().Bool("encrypt", false, "Encrypt the archive for the configured public key")
	packCmd.Flags().Bool("force", false, "Write to stdout even if it is a terminal")
	rootCmd.AddCommand(sizeCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of transfers to show")
	rootCmd.AddCommand(keysCmd)
}
