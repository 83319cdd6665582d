package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/guardzcom/slack-channel-cleanup/internal/cache"
	"github.com/guardzcom/slack-channel-cleanup/internal/config"
	"github.com/guardzcom/slack-channel-cleanup/internal/db"
	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
	"github.com/guardzcom/slack-channel-cleanup/internal/engine"
	"github.com/guardzcom/slack-channel-cleanup/internal/enumerate"
	"github.com/guardzcom/slack-channel-cleanup/internal/events"
	"github.com/guardzcom/slack-channel-cleanup/internal/ledger"
	"github.com/guardzcom/slack-channel-cleanup/internal/migrate"
	"github.com/guardzcom/slack-channel-cleanup/internal/slackapi"
)

var rootCmd = &cobra.Command{
	Use:   "chancur",
	Short: "Slack channel curation CLI",
	Long: `Chancur reconciles a Slack workspace's channels against a ledger of
operator decisions, kept in a CSV file or a Google Sheet.

Workflow:
- 'chancur sync' enumerates the workspace and merges the result into the
  ledger; new channels appear with action "new".
- Edit the ledger: set action to archive, rename, or update_description,
  with a target value where the action needs one.
- 'chancur apply' validates the ledger, shows each pending action for
  approval, and executes approved actions in a safe order (renames before
  archives). Archives can redirect members to another channel via a
  posted notice.

State (the activity cache and run history) lives in a .chancur directory
under the workspace. The Slack token is read from the environment, never
from a file.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		var cfgErr *domain.ConfigError
		switch {
		case errors.As(err, &cfgErr):
			fmt.Println("configuration error:", err)
		case domain.IsRemote(err):
			fmt.Println("slack error:", err)
		default:
			fmt.Println("error:", err)
		}
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("CHANCUR")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().StringP("file", "f", "channels.csv", "ledger CSV path")
	rootCmd.PersistentFlags().String("sheet", "", "Google Sheets URL (overrides --file)")
	rootCmd.PersistentFlags().String("credentials", "credentials.json", "Google service account key file")
	rootCmd.PersistentFlags().BoolP("dry-run", "d", false, "show what would happen without changing anything")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	for _, name := range []string{"workspace", "file", "sheet", "credentials", "dry-run", "json"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(applyCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(historyCmd())
}

func syncCmd() *cobra.Command {
	var refresh bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Merge the live channel list into the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				_, err := e.Sync(ctx, refresh, viper.GetBool("dry-run"))
				return err
			})
		},
	}
	cmd.Flags().BoolVarP(&refresh, "refresh", "r", false, "ignore the activity cache and refetch")
	return cmd
}

func applyCmd() *cobra.Command {
	var batch int
	var yes bool
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Execute pending ledger actions with interactive approval",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun := viper.GetBool("dry-run")
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				e.Approver.BatchSize = batch
				e.Approver.AssumeYes = yes
				if cs, ok := e.Store.(*ledger.CSVStore); ok && !dryRun {
					path, err := cs.Backup()
					switch {
					case err != nil:
						fmt.Printf("warning: could not back up ledger: %v\n", err)
					case path != "":
						fmt.Printf("Ledger backed up to %s\n", path)
					}
				}
				had, _, err := e.Apply(ctx, dryRun)
				if errors.Is(err, domain.ErrCancelled) {
					return nil // summary already printed, completed work kept
				}
				if err != nil {
					return err
				}
				if !had {
					fmt.Println("No pending actions; syncing ledger instead")
					_, err := e.Sync(ctx, false, dryRun)
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&batch, "batch", "b", 10, "actions reviewed per batch (0 reviews one at a time)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve every action without prompting")
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the config and ledger without touching Slack",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOptional(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			store, err := openStore(cmd.Context())
			if err != nil {
				return err
			}
			records, err := store.Read(cmd.Context())
			if err != nil {
				return err
			}
			if err := ledger.ValidateRecords(records); err != nil {
				return err
			}
			pending := 0
			for _, r := range records {
				if r.Pending() {
					pending++
				}
			}
			if viper.GetBool("json") {
				return printJSON(map[string]any{"records": len(records), "pending": pending, "ok": true})
			}
			fmt.Printf("Ledger OK: %d records, %d pending actions\n", len(records), pending)
			return nil
		},
	}
	return cmd
}

func historyCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := db.Open(db.Config{Workspace: viper.GetString("workspace")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			w := &events.Writer{DB: conn}
			entries, err := w.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"When", "Channel", "Action", "Target", "OK", "Message"})
			for _, e := range entries {
				ok := "yes"
				if !e.Success {
					ok = "no"
				}
				tw.AppendRow(table.Row{e.TS, "#" + e.ChannelName, e.Action, e.TargetValue, ok, e.Message})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of actions")
	return cmd
}

// --- helpers ---

func openStore(ctx context.Context) (ledger.Store, error) {
	if sheet := viper.GetString("sheet"); sheet != "" {
		return ledger.NewSheetStore(ctx, sheet, viper.GetString("credentials"))
	}
	return &ledger.CSVStore{Path: viper.GetString("file")}, nil
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	token := os.Getenv(cfg.Slack.TokenEnv)
	if token == "" {
		return &domain.ConfigError{Reason: fmt.Sprintf("%s is not set; export a Slack token first", cfg.Slack.TokenEnv)}
	}
	client := slackapi.New(token)
	user, team, err := client.Validate(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Authenticated as %s in workspace %s\n", user, team)

	store, err := openStore(ctx)
	if err != nil {
		return err
	}

	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}

	cacheStore := &cache.Store{DB: conn, TTL: cfg.Cache.TTL.Std(), Log: os.Stderr}
	e := &engine.Engine{
		API:      client,
		Store:    store,
		Enum:     &enumerate.Enumerator{API: client, Cache: cacheStore, Cfg: cfg, Out: os.Stdout},
		Events:   &events.Writer{DB: conn},
		Approver: &engine.Approver{In: os.Stdin, Out: os.Stdout},
		Cfg:      cfg,
		Out:      os.Stdout,
	}
	return fn(ctx, e)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
