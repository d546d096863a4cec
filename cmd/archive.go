package cmd

import (
	"context"
	"os"

	"example.com/raceday/services/registration/config"
	"example.com/raceday/services/registration/internal/database"
	"example.com/raceday/services/registration/internal/repository"
	"example.com/raceday/services/registration/internal/service"

	"github.com/spf13/cobra"
)

// importCmd imports an event archive from a TSV file
var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an event archive",
	Long: `Imports an event with all of its runners from a tab-separated
archive file, as produced by the export command or the export endpoint.
The whole file imports in one transaction; a malformed row aborts the
import.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runImport(args[0])
	},
}

// exportCmd writes an event archive to stdout
var exportCmd = &cobra.Command{
	Use:   "export <event-uid>",
	Short: "Export an event archive",
	Long:  `Writes the tab-separated archive of an event to standard output.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runExport(args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(exportCmd)
}

// contextForCommand returns the context used by one-shot commands.
func contextForCommand() context.Context {
	return context.Background()
}

// newArchiveService wires a service instance for the archive commands
func newArchiveService() (service.Service, database.DB) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	repo := repository.NewRepository(db)
	return service.NewService(repo, nil, log, cfg.Organization.Name), db
}

// runImport imports an archive file as a new event
func runImport(path string) {
	svc, db := newArchiveService()
	defer db.Close()

	f, err := os.Open(path)
	if err != nil {
		log.Fatalf("Failed to open archive file: %v", err)
	}
	defer f.Close()

	event, err := svc.ImportArchive(contextForCommand(), f)
	if err != nil {
		log.Fatalf("Import failed: %v", err)
	}

	log.WithField("event", event.UID).WithField("title", event.Title).Info("Event imported")
}

// runExport writes an event archive to stdout
func runExport(eventUID string) {
	svc, db := newArchiveService()
	defer db.Close()

	archive, err := svc.ExportArchive(contextForCommand(), eventUID)
	if err != nil {
		log.Fatalf("Export failed: %v", err)
	}

	if err := archive.WriteTSV(os.Stdout); err != nil {
		log.Fatalf("Failed to write archive: %v", err)
	}
}
