// Package jobkey defines the canonical identity of a job and its mapping to
// the on-disk directory name. Existing job directories follow the
// "<Name_With_Underscores>_<INV-NNNN>" convention, so both directions of the
// mapping must stay byte-compatible with data already on disk.
package jobkey

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedName is returned when a directory name lacks the markers the
// naming convention requires. Callers scanning many directories should treat
// it as "skip this entry" rather than a hard failure.
var ErrMalformedName = errors.New("malformed job directory name")

// invoiceMarker is embedded in every invoice number and therefore in every
// job directory name; Parse splits on it.
const invoiceMarker = "INV"

// Key identifies one job: the headstone name as entered by the operator and
// the full invoice number (e.g. "INV-1042").
type Key struct {
	HeadstoneName string `json:"headstoneName"`
	InvoiceNo     string `json:"invoiceNo"`
}

// sanitize replaces every character outside [A-Za-z0-9_] with an underscore.
// The rule predates this service (the uploads tree was once mirrored over
// FTP) and must not change, or new directories stop matching old ones.
func sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// DirectoryName composes the on-disk directory name for the key.
func (k Key) DirectoryName() string {
	name := strings.ReplaceAll(sanitize(k.HeadstoneName), " ", "_")
	return name + "_" + k.InvoiceNo
}

// Parse recovers a Key from a directory name. The name must contain the
// literal "INV" marker followed by a "-"-delimited numeric suffix; the
// portion before the marker (minus the joining underscore) is the headstone
// name with underscores standing in for spaces.
func Parse(dirName string) (Key, error) {
	idx := strings.Index(dirName, invoiceMarker)
	if idx <= 0 {
		return Key{}, fmt.Errorf("%w: %q has no %s marker", ErrMalformedName, dirName, invoiceMarker)
	}
	namePart := strings.TrimSuffix(dirName[:idx], "_")
	rest := dirName[idx+len(invoiceMarker):]
	dash := strings.Split(rest, "-")
	if len(dash) < 2 || dash[1] == "" {
		return Key{}, fmt.Errorf("%w: %q has no invoice suffix", ErrMalformedName, dirName)
	}
	return Key{
		HeadstoneName: strings.ReplaceAll(namePart, "_", " "),
		InvoiceNo:     invoiceMarker + "-" + dash[1],
	}, nil
}

// NormalizedDirName lowercases a directory name and turns underscores back
// into spaces; the job locator matches fragments against this form.
func NormalizedDirName(dirName string) string {
	return strings.ToLower(strings.ReplaceAll(dirName, "_", " "))
}
