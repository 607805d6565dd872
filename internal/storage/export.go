package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/glidesim/internal/sweep"
)

type ExportData struct {
	Run     *RunMetadata `json:"run,omitempty"`
	Records []Row        `json:"records"`
}

func EncodeJSON(w io.Writer, meta *RunMetadata, records []sweep.Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ExportData{Run: meta, Records: Rows(records)})
}

func ExportJSON(path string, meta *RunMetadata, records []sweep.Record) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodeJSON(file, meta, records); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
