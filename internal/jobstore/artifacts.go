package jobstore

import (
	"fmt"
	"os"
	"path/filepath"
)

// extByMIME maps declared upload MIME types to stored file extensions.
// Unknown types are stored with the literal extension "unknown" rather than
// rejected; the files still belong to the job even if we cannot name them.
var extByMIME = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"application/pdf": "pdf",
}

func extForMIME(contentType string) string {
	if ext, ok := extByMIME[contentType]; ok {
		return ext
	}
	return "unknown"
}

// mimeForExt is the read-side inverse used when inlining images: anything
// unrecognized is served as JPEG, which existing clients already expect.
func mimeForExt(ext string) string {
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// saveVersioned writes data as the next free "<base>_vN.<ext>" in dir,
// scanning N upward from 1. Prior versions are never overwritten or removed,
// so version numbers grow monotonically. The linear scan is fine: versions
// are bounded by how often a human resubmits a document.
func saveVersioned(dir, base, ext string, data []byte) (string, error) {
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s_v%d.%s", base, n, ext)
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0o640); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
		return name, nil
	}
}

// writeBatch stores each artifact as "<stamp>_<index>.<ext>". The caller has
// already cleared the directory; startIndex keeps indices unique when one
// batch is split across two directories. Files written before a failure are
// left in place (no rollback).
func writeBatch(dir string, images []Artifact, stamp int64, startIndex int) error {
	for i, img := range images {
		name := fmt.Sprintf("%d_%d.%s", stamp, startIndex+i, extForMIME(img.ContentType))
		if err := os.WriteFile(filepath.Join(dir, name), img.Data, 0o640); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}
