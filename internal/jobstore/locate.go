package jobstore

import (
	"fmt"
	"os"
	"strings"

	"github.com/headstone-world/stoneledger/internal/jobkey"
)

// ListJobsByName scans the uploads root for job directories whose
// normalized name (lowercased, underscores as spaces) contains both the
// "inv" token and the given fragment. Every match is returned: partial-name
// lookup is deliberately fuzzy and may hit several jobs. Directories that do
// not parse as job names are skipped, not fatal; the uploads root has
// historically collected strays.
func (s *Store) ListJobsByName(fragment string) ([]jobkey.Key, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("scan uploads root: %w", err)
	}
	fragment = strings.ToLower(fragment)
	keys := []jobkey.Key{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		normalized := jobkey.NormalizedDirName(entry.Name())
		if !strings.Contains(normalized, "inv") || !strings.Contains(normalized, fragment) {
			continue
		}
		key, err := jobkey.Parse(entry.Name())
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// FindByInvoiceNo returns the directory name of the job with exactly this
// invoice number. Matching is on the parsed invoice token, not substring
// containment, so INV-1042 never resolves a job filed under INV-10420.
func (s *Store) FindByInvoiceNo(invoiceNo string) (string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", fmt.Errorf("scan uploads root: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		key, err := jobkey.Parse(entry.Name())
		if err != nil {
			continue
		}
		if strings.EqualFold(key.InvoiceNo, invoiceNo) {
			return entry.Name(), nil
		}
	}
	return "", fmt.Errorf("invoice %s: %w", invoiceNo, ErrNotFound)
}
