package main

import (
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/elajah-datadog/dogflare/internal/app"
	"github.com/elajah-datadog/dogflare/internal/config"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer
// app.Close(). operation identifies the CLI command being run (e.g. "Sync").
func newApp(operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	a, err := app.NewApp(cfg, operation)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}

	return a, nil
}

var rootCmd = &cobra.Command{
	Use:   "dogflare",
	Short: "Support ticket attachment sync tool",
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

		cfg := config.NewConfig(defaults["base_dir"])

		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Downloads Root: %s\n", cfg.DownloadsRoot)
		fmt.Println("Set zendesk subdomain, email and api_token before the first sync.")
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Downloads Root: %s\n", cfg.DownloadsRoot)
		fmt.Printf("Log Dir:        %s\n", cfg.LogDir)
		fmt.Printf("Zendesk:        %s.zendesk.com (%s)\n", cfg.Zendesk.Subdomain, cfg.Zendesk.Email)
		fmt.Printf("Database:       %s\n", cfg.Database.Type)
		fmt.Printf("Mirror:         %s\n", cfg.Mirror.Type)
		return nil
	},
}

// sync command
var syncCmd = &cobra.Command{
	Use:   "sync [ticketID...]",
	Short: "Download ticket attachments",
	Long: `Download the attachments of the given tickets, skipping content already
present anywhere in the workspace. With no ticket ids, syncs all open
tickets of the assignee (--assignee, defaulting to the configured email).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		assignee, _ := cmd.Flags().GetString("assignee")

		a, err := newApp("Sync")
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		report, err := a.SyncAssigneeOrTickets(ctx, assignee, args)
		if err != nil {
			return err
		}

		fmt.Printf("Synced %d attachment(s) across %d ticket(s), %d duplicate(s) skipped, %d failure(s)\n",
			report.Stats.Added, len(report.Synced), report.Stats.Duplicates, report.Stats.Failures)
		if len(report.Add.AlreadyPresent) > 0 {
			fmt.Printf("Already indexed, left untouched: %s\n", strings.Join(report.Add.AlreadyPresent, ", "))
		}
		return nil
	},
}

// rm command
var rmCmd = &cobra.Command{
	Use:   "rm <ticketID...>",
	Short: "Remove tickets from the workspace",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Remove")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Remove(args)
		if err != nil {
			return err
		}

		printRemoveResult(result.Removed, result.NotFound, result.FailedDeletions)
		return nil
	},
}

// scrub command
var scrubCmd = &cobra.Command{
	Use:   "scrub",
	Short: "Remove solved and closed tickets from the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Scrub")
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.Scrub(cmd.Context())
		if err != nil {
			return err
		}

		if len(result.Removed) == 0 && len(result.NotFound) == 0 {
			fmt.Println("No solved or closed tickets to scrub.")
			return nil
		}
		printRemoveResult(result.Removed, result.NotFound, result.FailedDeletions)
		return nil
	},
}

// list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List synced tickets",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("List")
		if err != nil {
			return err
		}
		defer a.Close()

		listings, err := a.List()
		if err != nil {
			return err
		}

		if len(listings) == 0 {
			fmt.Println("No tickets synced.")
			return nil
		}
		for _, l := range listings {
			fmt.Printf("%s\t%d attachment(s)\n", l.TicketID, len(l.Entry.Attachments))
			for _, att := range l.Entry.Attachments {
				fmt.Printf("\t%s\t%s\n", att.CreatedAt.Format("2006-01-02"), att.FileName)
			}
		}
		return nil
	},
}

// reset command
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the workspace index",
	Long:  "Clear the whole workspace index. Downloaded files stay on disk.",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("Reset")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Reset(); err != nil {
			return err
		}
		fmt.Println("Workspace index cleared.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp("History")
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.History(limit)
		if err != nil {
			return err
		}

		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}
		for _, run := range runs {
			fmt.Printf("%s\t%s\tadded=%d duplicates=%d failures=%d\n",
				run.StartedAt.Format("2006-01-02 15:04:05"), run.Operation,
				run.Added, run.Duplicates, run.Failures)
		}
		return nil
	},
}

// mirror command
var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Manage the content mirror",
}

var mirrorValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Verify the mirror is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MirrorValidate")
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.MirrorValidate(); err != nil {
			return err
		}
		fmt.Println("Mirror is reachable.")
		return nil
	},
}

var mirrorInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate mirror encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp("MirrorInit")
		if err != nil {
			return err
		}
		defer a.Close()

		passphrase, err := readPassphrase()
		if err != nil {
			return err
		}

		if err := a.MirrorInit(passphrase); err != nil {
			return err
		}
		fmt.Println("Encryption keys generated.")
		return nil
	},
}

// readPassphrase prompts for a passphrase twice without echo.
func readPassphrase() (string, error) {
	fmt.Print("Passphrase: ")
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	fmt.Print("Confirm passphrase: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passphrases do not match")
	}
	if len(first) == 0 {
		return "", fmt.Errorf("passphrase must not be empty")
	}
	return string(first), nil
}

func printRemoveResult(removed, notFound []string, failedDeletions map[string]error) {
	if len(removed) > 0 {
		fmt.Printf("Removed: %s\n", strings.Join(removed, ", "))
	}
	if len(notFound) > 0 {
		fmt.Printf("Not found: %s\n", strings.Join(notFound, ", "))
	}
	for id, err := range failedDeletions {
		fmt.Printf("Warning: folder deletion failed for %s: %v\n", id, err)
	}
}

func init() {
	syncCmd.Flags().String("assignee", "", "sync all open tickets of this assignee email")
	historyCmd.Flags().Int("limit", 20, "number of runs to show")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	mirrorCmd.AddCommand(mirrorValidateCmd)
	mirrorCmd.AddCommand(mirrorInitCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(scrubCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mirrorCmd)
}
