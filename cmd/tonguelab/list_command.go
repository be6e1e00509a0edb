package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"tonguelab/internal/config"
	"tonguelab/internal/importers"
	"tonguelab/internal/store"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var databaseFlag string

	cmd := &cobra.Command{
		Use:   "list [session-dir]",
		Short: "List a session directory's recordings, or saved sessions",
		Long: "With a session directory, imports it (without deriving anything) " +
			"and lists its recordings. Without arguments, lists the sessions " +
			"saved in the database.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return listRecordings(ctx, cmd, args[0])
			}
			return listSavedSessions(ctx, cmd, databaseFlag)
		},
	}

	cmd.Flags().StringVar(&databaseFlag, "database", "", "Session database path")
	return cmd
}

func listRecordings(ctx *commandContext, cmd *cobra.Command, dir string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	sessionDir, err := config.ExpandPath(dir)
	if err != nil {
		return err
	}
	session, err := importers.ImportAAASession(sessionDir, cfg, nil)
	if err != nil {
		return fmt.Errorf("import session: %w", err)
	}

	rows := make([][]string, 0, session.RecordingCount())
	for _, recording := range session.Recordings() {
		meta := recording.Meta()
		status := ""
		if recording.Excluded() {
			status = "excluded"
		}
		rows = append(rows, []string{
			recording.Name(),
			meta.Prompt,
			meta.TimeOfRecording.Format("2006-01-02 15:04:05"),
			strings.Join(recording.ModalityNames(), ", "),
			status,
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Recording", "Prompt", "Recorded", "Modalities", "Status"}, rows))
	return nil
}

func listSavedSessions(ctx *commandContext, cmd *cobra.Command, databaseFlag string) error {
	dbPath, err := ctx.databasePath(databaseFlag, "")
	if err != nil {
		return err
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	infos, err := db.Sessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(infos) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No saved sessions in %s\n", dbPath)
		return nil
	}
	rows := make([][]string, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, []string{
			info.Name,
			info.SavedAt.Local().Format(time.DateTime),
			strconv.Itoa(info.Recordings),
			strconv.Itoa(info.Statistics),
		})
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"Session", "Saved", "Recordings", "Statistics"}, rows))
	return nil
}
