package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/promptbox/internal/api"
	"github.com/jackzampolin/promptbox/internal/svcctx"
)

// BackupResponse names the file a backup was written to.
type BackupResponse struct {
	Path string `json:"path"`
}

// BackupDatabaseEndpoint handles POST /api/backup/db, snapshotting the
// database into the backups directory.
type BackupDatabaseEndpoint struct{}

func (e *BackupDatabaseEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/backup/db", e.handler
}

func (e *BackupDatabaseEndpoint) RequiresInit() bool { return true }

func (e *BackupDatabaseEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	path, err := svcctx.BackupsFrom(r.Context()).Database(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, BackupResponse{Path: path})
}

func (e *BackupDatabaseEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "db",
		Short: "Snapshot the database into the backups directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BackupResponse
			if err := client.Post(cmd.Context(), "/api/backup/db", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// BackupArchiveEndpoint handles POST /api/backup/archive, writing a tar.gz
// of every prompt and card into the backups directory.
type BackupArchiveEndpoint struct{}

func (e *BackupArchiveEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/backup/archive", e.handler
}

func (e *BackupArchiveEndpoint) RequiresInit() bool { return true }

func (e *BackupArchiveEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	path, err := svcctx.BackupsFrom(r.Context()).Archive(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, BackupResponse{Path: path})
}

func (e *BackupArchiveEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive",
		Short: "Archive all prompts and cards into the backups directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp BackupResponse
			if err := client.Post(cmd.Context(), "/api/backup/archive", nil, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ExportArchiveEndpoint handles GET /api/export/archive, streaming the
// prompt and card archive as tar.gz.
type ExportArchiveEndpoint struct{}

func (e *ExportArchiveEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/export/archive", e.handler
}

func (e *ExportArchiveEndpoint) RequiresInit() bool { return true }

func (e *ExportArchiveEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("promptbox-%s.tar.gz", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	if err := svcctx.BackupsFrom(r.Context()).WriteArchive(r.Context(), w); err != nil {
		// Too late for a status code, the archive is partially written.
		svcctx.LoggerFrom(r.Context()).Error("archive export failed", "error", err)
	}
}

func (e *ExportArchiveEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outFile string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download the prompt and card archive as tar.gz",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outFile == "" {
				outFile = fmt.Sprintf("promptbox-%s.tar.gz", time.Now().Format("20060102-150405"))
			}
			f, err := os.Create(outFile)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outFile, err)
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			if err := client.GetRaw(cmd.Context(), "/api/export/archive", f); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outFile)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default promptbox-<timestamp>.tar.gz)")
	return cmd
}
