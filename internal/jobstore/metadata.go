package jobstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	orderDataFile     = "data.json"
	workOrderDataFile = "data.json"
)

// Document is a loosely typed metadata mapping persisted as pretty-printed
// JSON. Form fields arrive as strings; the deposits array accumulates
// records across saves.
type Document map[string]any

// fallbackFields is the subset of order-level form fields served when a job
// has no work-order document yet. Field names match what the front end
// submits, including the headStoneName capitalization quirk.
var fallbackFields = []string{
	"headStoneName",
	"invoiceNo",
	"date",
	"customerEmail",
	"customerName",
	"customerPhone",
	"cemeteryName",
	"cemeteryAddress",
	"cemeteryContact",
	"lotNumber",
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return doc, nil
}

func writeDocument(path string, doc Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// writeOrderMetadata merges one invoice save into the order-level document.
// Deposits only ever accumulate; every other field is replaced wholesale by
// the incoming form, with the transient deposit input blanked so the amount
// is not stored twice.
func (s *Store) writeOrderMetadata(jobDir string, fields map[string]string, deposit string) error {
	path := filepath.Join(jobDir, orderDataFile)
	doc, err := readDocument(path)
	if err != nil {
		if !isNotFound(err) {
			return err
		}
		doc = Document{}
	}
	deposits, _ := doc["deposits"].([]any)
	if deposit != "" {
		deposits = append(deposits, map[string]any{
			"depositAmount": deposit,
			"date":          time.Now().Format("2006-01-02"),
		})
	}
	if deposits == nil {
		deposits = []any{}
	}
	doc["deposits"] = deposits
	data := make(map[string]any, len(fields))
	for k, v := range fields {
		data[k] = v
	}
	data["deposit"] = ""
	doc["data"] = data
	return writeDocument(path, doc)
}

// writeWorkOrderMetadata fully replaces the work-order document; unlike the
// order-level save there is no field to merge.
func (s *Store) writeWorkOrderMetadata(workOrderDir string, fields map[string]string) error {
	doc := make(Document, len(fields))
	for k, v := range fields {
		doc[k] = v
	}
	return writeDocument(filepath.Join(workOrderDir, workOrderDataFile), doc)
}

// readWorkOrderOrFallback returns the work-order document when present. When
// the work order has not been created yet it falls back to the fixed subset
// of the order-level form fields and reports found=false, which is distinct
// from a hard error: the job exists, the stage does not.
func (s *Store) readWorkOrderOrFallback(jobDir string) (Document, bool, error) {
	doc, err := readDocument(filepath.Join(jobDir, StageWorkOrder.RelPath(), workOrderDataFile))
	if err == nil {
		return doc, true, nil
	}
	if !isNotFound(err) {
		return nil, false, err
	}
	order, err := readDocument(filepath.Join(jobDir, orderDataFile))
	if err != nil {
		if isNotFound(err) {
			return Document{}, false, nil
		}
		return nil, false, err
	}
	fallback := Document{}
	if data, ok := order["data"].(map[string]any); ok {
		for _, field := range fallbackFields {
			if v, ok := data[field]; ok {
				fallback[field] = v
			}
		}
	}
	return fallback, false, nil
}
