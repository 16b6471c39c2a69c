package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"salesplan/internal/domain"
	"salesplan/internal/importer"
	"salesplan/internal/wire"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	previewKind string
	previewOut  string
)

// previewReport mirrors the HTTP preview envelope so either can feed commit.
type previewReport struct {
	Success     bool                 `json:"success"`
	File        string               `json:"file"`
	Format      domain.ExcelFormat   `json:"format"`
	Validation  wire.Validation      `json:"validation"`
	PreviewData []wire.SerializedRow `json:"previewData"`
}

var previewCmd = &cobra.Command{
	Use:   "preview FILE",
	Short: "Detect, parse and validate a workbook without saving it",
	Long: `Preview runs detection, parsing and validation on a workbook and prints
the report as JSON. Nothing is written to the database.

Examples:
  importctl preview --kind forecast rtl_po.xlsx
  importctl preview --kind sales --out report.json sales_q1.xlsx`,
	Args: cobra.ExactArgs(1),
	RunE: runPreview,
}

func init() {
	previewCmd.Flags().StringVar(&previewKind, "kind", "", "Import kind: forecast or sales")
	previewCmd.Flags().StringVar(&previewOut, "out", "", "Write the report to this file instead of stdout")
	_ = previewCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(previewCmd)
}

func runPreview(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(previewKind)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := readLimited(path, importer.MaxFileSize)
	if err != nil {
		return err
	}

	a, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.importer().Preview(cmd.Context(), kind, importer.Upload{
		FileName: filepath.Base(path),
		Data:     data,
	})
	if err != nil {
		msg := importer.Describe(err)
		a.log.Error("preview failed", zap.String("file", path), zap.String("code", msg.Code), zap.Error(err))
		return fmt.Errorf("%s (%s): %s", msg.Message, msg.Code, msg.Action)
	}

	report := previewReport{
		Success:     true,
		File:        filepath.Base(path),
		Format:      result.Format,
		Validation:  result.Validation,
		PreviewData: result.PreviewData,
	}
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	if previewOut == "" {
		_, err = cmd.OutOrStdout().Write(append(body, '\n'))
		return err
	}
	if err := os.WriteFile(previewOut, body, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	summary := result.Validation.Summary
	a.log.Info("preview written",
		zap.String("out", previewOut),
		zap.String("format", string(result.Format)),
		zap.Int("rows", summary.TotalRows),
		zap.Int("valid", summary.ValidRows),
		zap.Int("error_rows", summary.ErrorRows),
	)
	return nil
}

// readLimited keeps one byte past limit so oversized files still fail the
// importer's size check instead of being loaded whole.
func readLimited(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read workbook: %w", err)
	}
	return data, nil
}
