package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filmcat/internal/app"
	"filmcat/internal/catalog"
	"filmcat/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// Exit codes. Anything not listed exits 1.
const (
	exitInvalid    = 2
	exitNotFound   = 3
	exitPermission = 4
	exitStore      = 5
)

func main() {
	_ = godotenv.Load() // optional .env with FILMCAT_* overrides

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var (
		validation *catalog.ValidationError
		permission *catalog.PermissionError
		malformed  *catalog.MalformedStoreError
		persist    *catalog.PersistenceError
	)
	switch {
	case errors.As(err, &validation):
		return exitInvalid
	case errors.Is(err, catalog.ErrNotFound):
		return exitNotFound
	case errors.As(err, &permission), errors.Is(err, app.ErrNotLoggedIn):
		return exitPermission
	case errors.As(err, &malformed), errors.As(err, &persist):
		return exitStore
	default:
		return 1
	}
}

// newApp reads the config and creates a FilmApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "film approve").
func newApp(operation string) (*app.FilmApp, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewFilmApp(cfg, operation, app.Options{Verbose: verbose})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

// newSession is newApp followed by a login as the --as account.
func newSession(operation string) (*app.FilmApp, error) {
	a, err := newApp(operation)
	if err != nil {
		return nil, err
	}
	if err := login(a); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func login(a *app.FilmApp) error {
	if actingAs == "" {
		return fmt.Errorf("%w: pass --as EMAIL", app.ErrNotLoggedIn)
	}
	password, err := readSecret("Password: ")
	if err != nil {
		return err
	}
	if _, err := a.Login(actingAs, password); err != nil {
		return err
	}
	return nil
}

var stdin = bufio.NewReader(os.Stdin)

// readSecret prompts on stderr and reads without echo when stdin is a
// terminal. Piped input is read one line at a time.
func readSecret(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, prompt)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(b), nil
	}

	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readNewSecret asks twice and requires both answers to match.
func readNewSecret(what string) (string, error) {
	first, err := readSecret(what + ": ")
	if err != nil {
		return "", err
	}
	second, err := readSecret("Confirm " + strings.ToLower(what) + ": ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("%s entries do not match", strings.ToLower(what))
	}
	return first, nil
}

var (
	actingAs string
	verbose  bool
)

var rootCmd = &cobra.Command{
	Use:           "filmcat",
	Short:         "Moderated film catalog",
	SilenceUsage:  true,
	SilenceErrors: true,
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
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults.BaseDir)
		if storage, _ := cmd.Flags().GetString("storage"); storage == "sqlite" {
			cfg.Storage = config.StorageConfig{
				Type:        "sqlite",
				DBPath:      filepath.Join(defaults.BaseDir, "filmcat.db"),
				AutoMigrate: true,
			}
		} else if storage != "json" {
			return fmt.Errorf("unknown storage type %q", storage)
		}
		if encrypt, _ := cmd.Flags().GetBool("encrypt-backups"); encrypt {
			cfg.Encryption.Type = "age"
		}

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Base Dir: %s\n", cfg.BaseDir)
		fmt.Printf("Storage: %s\n", cfg.Storage.Type)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("base_dir\t%s\n", cfg.BaseDir)
		fmt.Printf("log_dir\t%s\n", cfg.LogDir)
		fmt.Printf("storage.type\t%s\n", cfg.Storage.Type)
		switch cfg.Storage.Type {
		case "sqlite":
			fmt.Printf("storage.db_path\t%s\n", cfg.Storage.DBPath)
			fmt.Printf("storage.auto_migrate\t%t\n", cfg.Storage.AutoMigrate)
		case "", "json":
			fmt.Printf("storage.users_path\t%s\n", cfg.Storage.UsersPath)
			fmt.Printf("storage.films_path\t%s\n", cfg.Storage.FilmsPath)
		}
		if len(cfg.Storage.SkipSaves) > 0 {
			fmt.Printf("storage.skip_saves\t%s\n", strings.Join(cfg.Storage.SkipSaves, ","))
		}
		fmt.Printf("credentials.hasher\t%s\n", cfg.Credentials.Hasher)
		fmt.Printf("encryption.type\t%s\n", cfg.Encryption.Type)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage backup encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the backup key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("keys init")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readNewSecret("Passphrase")
		if err != nil {
			return err
		}
		if err := a.InitKeys(passphrase); err != nil {
			return err
		}
		fmt.Println("Backup encryption keys created")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&actingAs, "as", "", "Email of the account to act as")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Mirror log output to stderr")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().String("storage", "json", "Storage backend: json or sqlite")
	configInitCmd.Flags().Bool("encrypt-backups", false, "Encrypt backups with an age key pair")
	configCmd.AddCommand(configListCmd)

	keysCmd.AddCommand(keysInitCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(filmCmd)
	rootCmd.AddCommand(storeCmd)
}
