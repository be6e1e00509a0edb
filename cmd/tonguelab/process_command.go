package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tonguelab/internal/config"
	"tonguelab/internal/importers"
	"tonguelab/internal/pipeline"
	"tonguelab/internal/store"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var (
		databaseFlag string
		noSave       bool
	)

	cmd := &cobra.Command{
		Use:   "process <session-dir>",
		Short: "Import a session, derive configured metrics, and save the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			sessionDir, err := config.ExpandPath(args[0])
			if err != nil {
				return err
			}

			session, err := importers.ImportAAASession(sessionDir, cfg, logger)
			if err != nil {
				return fmt.Errorf("import session: %w", err)
			}

			runner := pipeline.NewRunner(logger)
			if err := runner.AddDerivedData(session, cfg); err != nil {
				return fmt.Errorf("derive data: %w", err)
			}

			excluded := 0
			for _, recording := range session.Recordings() {
				if recording.Excluded() {
					excluded++
				}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed session %s: %d recordings (%d excluded)\n",
				session.Name(), session.RecordingCount(), excluded)

			if noSave {
				return nil
			}
			dbPath, err := ctx.databasePath(databaseFlag, sessionDir)
			if err != nil {
				return err
			}
			db, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()
			if err := db.Save(cmd.Context(), session); err != nil {
				return fmt.Errorf("save session: %w", err)
			}
			fmt.Fprintf(out, "Saved to %s\n", dbPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&databaseFlag, "database", "", "Session database path")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Derive without saving")
	return cmd
}
