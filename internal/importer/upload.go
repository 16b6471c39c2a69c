package importer

import (
	"bytes"
	"fmt"
	"mime"
	"path/filepath"
	"strings"
)

// MaxFileSize is the largest upload accepted. A file of exactly this size passes.
const MaxFileSize int64 = 10 << 20

var zipSignature = []byte{0x50, 0x4B, 0x03, 0x04}

var spreadsheetExtensions = map[string]struct{}{
	".xlsx": {},
	".xlsm": {},
}

var spreadsheetMimeTypes = map[string]struct{}{
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
	"application/vnd.ms-excel.sheet.macroenabled.12":                    {},
	"application/vnd.ms-excel":                                          {},
}

type Upload struct {
	FileName    string
	ContentType string
	Data        []byte
}

// CheckUpload runs the cheap checks that precede parsing: size, declared
// type and the zip signature every xlsx file starts with.
func CheckUpload(u Upload, limit int64) error {
	if limit <= 0 || limit > MaxFileSize {
		limit = MaxFileSize
	}
	if size := int64(len(u.Data)); size > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, size, limit)
	}
	if !looksLikeSpreadsheet(u.FileName, u.ContentType) {
		return fmt.Errorf("%w: name %q, type %q", ErrInvalidMimeType, u.FileName, u.ContentType)
	}
	if !bytes.HasPrefix(u.Data, zipSignature) {
		return ErrInvalidSignature
	}
	return nil
}

func looksLikeSpreadsheet(name, contentType string) bool {
	if _, ok := spreadsheetExtensions[strings.ToLower(filepath.Ext(name))]; ok {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	_, ok := spreadsheetMimeTypes[strings.ToLower(mediaType)]
	return ok
}
