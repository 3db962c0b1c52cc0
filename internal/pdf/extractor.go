// Package pdfutil sanity-checks uploaded invoice PDFs. Shop scanners emit
// the occasional nonconforming file, so callers log a failed check rather
// than rejecting the upload; losing an invoice is worse than storing an odd
// one.
package pdfutil

import (
	"bytes"
	"fmt"

	pdf "github.com/ledongthuc/pdf"
)

// PageCount parses PDF bytes and returns the number of pages.
func PageCount(data []byte) (int, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return doc.NumPage(), nil
}
