package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"salesplan/internal/importer"
	"salesplan/internal/wire"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	commitKind  string
	commitActor string
)

var commitCmd = &cobra.Command{
	Use:   "commit FILE",
	Short: "Upsert the valid rows of a preview report",
	Long: `Commit reads a report written by "importctl preview" (or a document of
the form {"rows": [...]}) and upserts its valid rows in one transaction.
Ids are checked against master data again before anything is written.

Examples:
  importctl commit --kind forecast --actor planner-7 report.json`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().StringVar(&commitKind, "kind", "", "Import kind: forecast or sales")
	commitCmd.Flags().StringVar(&commitActor, "actor", "", "Id recorded as the author of the import")
	_ = commitCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(commitKind)
	if err != nil {
		return err
	}

	body, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read rows: %w", err)
	}
	rows, err := decodeCommitRows(body)
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.importer().Commit(cmd.Context(), kind, rows, commitActor)
	if err != nil {
		msg := importer.Describe(err)
		a.log.Error("commit failed", zap.String("file", args[0]), zap.String("code", msg.Code), zap.Error(err))
		return fmt.Errorf("%s (%s): %s", msg.Message, msg.Code, msg.Action)
	}

	out, err := json.MarshalIndent(map[string]any{
		"success":  true,
		"imported": result.Imported,
		"updated":  result.Updated,
		"skipped":  result.Skipped,
		"batchId":  result.BatchID.String(),
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(append(out, '\n'))
	return err
}

// decodeCommitRows accepts either a preview report, whose valid rows are
// committed, or a bare {"rows": [...]} document.
func decodeCommitRows(body []byte) ([]wire.SerializedRow, error) {
	var doc struct {
		Rows       []wire.SerializedRow `json:"rows"`
		Validation *struct {
			Valid []wire.SerializedRow `json:"valid"`
		} `json:"validation"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", importer.ErrInvalidPayload, err)
	}
	switch {
	case doc.Rows != nil:
		return doc.Rows, nil
	case doc.Validation != nil:
		return doc.Validation.Valid, nil
	}
	return nil, errors.New(`rows file has neither "rows" nor "validation.valid"`)
}
