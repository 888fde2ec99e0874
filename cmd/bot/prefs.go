package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"math-learning-bot/internal/application/prefsync"
	"math-learning-bot/internal/application/usecases"
	"math-learning-bot/internal/domain/preferences"
	"math-learning-bot/internal/domain/user"
	"math-learning-bot/internal/infrastructure/persistence"
)

var (
	prefsUserID     int64
	prefsTelegramID int64
	prefsFile       string
)

// prefsCmd inspects and moves user preferences
var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Inspect, export and import user preferences",
	Long: `Inspect, export and import user preferences.

Select the user with --user (bot user id) or --telegram (Telegram id).

Subcommands:
  show    - Print the current preferences
  export  - Write the persisted record as JSON
  import  - Apply a record exported elsewhere`,
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences of a user",
	RunE:  runPrefsShow,
}

var prefsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a user's preference record as JSON",
	Long: `Writes the user's preference record to --file, or stdout when no file is
given. The output can be applied to another deployment with "prefs import".`,
	RunE: runPrefsExport,
}

var prefsImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply a preference record exported elsewhere",
	Long: `Reads a record from --file, or stdin when no file is given, and applies it
to the user as an external sync. The merged record is then stored.`,
	RunE: runPrefsImport,
}

func init() {
	prefsCmd.PersistentFlags().Int64Var(&prefsUserID, "user", 0, "bot user id")
	prefsCmd.PersistentFlags().Int64Var(&prefsTelegramID, "telegram", 0, "Telegram user id")
	prefsExportCmd.Flags().StringVarP(&prefsFile, "file", "f", "", "output file (default stdout)")
	prefsImportCmd.Flags().StringVarP(&prefsFile, "file", "f", "", "input file (default stdin)")

	prefsCmd.AddCommand(prefsShowCmd, prefsExportCmd, prefsImportCmd)
}

// prefsEnv is what every prefs subcommand works with.
type prefsEnv struct {
	db       *sql.DB
	durable  preferences.DurableStore
	hub      *prefsync.Hub
	settings *usecases.SettingsUseCase
	userID   user.ID
}

func openPrefs(ctx context.Context) (*prefsEnv, error) {
	if (prefsUserID == 0) == (prefsTelegramID == 0) {
		return nil, errors.New("exactly one of --user or --telegram is required")
	}

	db, err := persistence.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	userID := user.ID(prefsUserID)
	if prefsTelegramID != 0 {
		u, err := usecases.NewUserUseCase(persistence.NewUserRepository(db)).
			GetUserByTelegramID(ctx, user.TelegramID(prefsTelegramID))
		if err != nil {
			db.Close()
			return nil, err
		}
		userID = u.ID()
	}

	durable := persistence.NewPreferenceStore(db)
	hub := prefsync.NewHub(durable, logger)
	return &prefsEnv{
		db:       db,
		durable:  durable,
		hub:      hub,
		settings: usecases.NewSettingsUseCase(hub, logger),
		userID:   userID,
	}, nil
}

func (e *prefsEnv) close(ctx context.Context) error {
	err := e.hub.Close(ctx)
	return errors.Join(err, e.db.Close())
}

func runPrefsShow(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	env, err := openPrefs(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.close(ctx)) }()

	snap, err := env.settings.Preferences(ctx, env.userID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "user %d, version %d", env.userID, snap.Version())
	if !snap.UpdatedAt().IsZero() {
		fmt.Fprintf(out, ", updated %s", snap.UpdatedAt().Format("2006-01-02 15:04:05"))
	}
	fmt.Fprintln(out)
	for _, f := range preferences.KnownFields() {
		v, _ := snap.Get(f)
		fmt.Fprintf(out, "  %-18s %s\n", f, v)
	}
	return nil
}

func runPrefsExport(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()
	env, err := openPrefs(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.close(ctx)) }()

	data, err := env.settings.Export(ctx, env.userID)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if prefsFile == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(prefsFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func runPrefsImport(cmd *cobra.Command, _ []string) (err error) {
	ctx := cmd.Context()

	var data []byte
	if prefsFile == "" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(prefsFile)
	}
	if err != nil {
		return fmt.Errorf("failed to read record: %w", err)
	}

	env, err := openPrefs(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, env.close(ctx)) }()

	snap, err := env.settings.Import(ctx, env.userID, data)
	if err != nil {
		return err
	}

	// external syncs are not persisted by the engine; this deployment stores
	// the merged record itself
	key := prefsync.UserKey(int64(env.userID))
	record, err := preferences.EncodeRecord(key, snap)
	if err != nil {
		return fmt.Errorf("failed to encode preferences: %w", err)
	}
	if err := env.durable.Set(ctx, key, record); err != nil {
		return fmt.Errorf("failed to store preferences: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported preferences for user %d at version %d\n", env.userID, snap.Version())
	return nil
}
