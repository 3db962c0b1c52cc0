// Package jobstore persists job records as one directory per job under a
// single uploads root. The directory tree is the database: the layout and
// naming conventions below are shared with data written by earlier versions
// of this system and must be reproduced exactly.
package jobstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/headstone-world/stoneledger/internal/jobkey"
)

// ErrNotFound is returned when no job directory or metadata document matches
// a lookup. Callers compare with errors.Is to distinguish it from I/O
// failures.
var ErrNotFound = errors.New("job not found")

// Artifact is one uploaded binary payload together with its declared MIME
// type. The HTTP layer decodes multipart bodies; the store only ever sees
// these buffers.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Store is a handle on the uploads root. It is opened once at startup and
// passed to every operation; no package-level path state exists.
type Store struct {
	root string
}

// Open ensures the uploads root exists and returns a Store over it.
func Open(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("uploads root is required")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create uploads root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root reports the uploads root path.
func (s *Store) Root() string {
	return s.root
}

// JobDir resolves the absolute path of a job directory.
func (s *Store) JobDir(dirName string) string {
	return filepath.Join(s.root, dirName)
}

// SaveInvoice writes a versioned invoice PDF into the job directory and
// merges the submitted form fields into the order-level metadata document.
// A non-empty deposit appends a deposit record dated today. The job
// directory is created on first write. Returns the stored PDF filename.
func (s *Store) SaveInvoice(key jobkey.Key, pdf []byte, fields map[string]string, deposit string) (string, error) {
	dirName := key.DirectoryName()
	if err := s.ensureJobRoot(dirName); err != nil {
		return "", err
	}
	jobDir := s.JobDir(dirName)
	name, err := saveVersioned(jobDir, "invoice", "pdf", pdf)
	if err != nil {
		return "", err
	}
	if err := s.writeOrderMetadata(jobDir, fields, deposit); err != nil {
		return "", err
	}
	return name, nil
}

// SubmitStage replaces the contents of one stage directory with the given
// images: the directory is cleared first, so the latest submission wins.
func (s *Store) SubmitStage(key jobkey.Key, stage Stage, images []Artifact) error {
	dir, err := s.prepareStage(key.DirectoryName(), stage)
	if err != nil {
		return err
	}
	return writeBatch(dir, images, time.Now().UnixMilli(), 0)
}

// SubmitSplit distributes one image batch across two stage directories:
// images[0:splitIndex] into first, the remainder into second. Both
// directories are cleared before writing. Indices stay unique across the
// whole batch so filenames never collide even within one millisecond.
func (s *Store) SubmitSplit(key jobkey.Key, first, second Stage, images []Artifact, splitIndex int) error {
	if splitIndex < 0 || splitIndex > len(images) {
		return fmt.Errorf("split index %d out of range for %d images", splitIndex, len(images))
	}
	dirName := key.DirectoryName()
	firstDir, err := s.prepareStage(dirName, first)
	if err != nil {
		return err
	}
	secondDir, err := s.prepareStage(dirName, second)
	if err != nil {
		return err
	}
	stamp := time.Now().UnixMilli()
	if err := writeBatch(firstDir, images[:splitIndex], stamp, 0); err != nil {
		return err
	}
	return writeBatch(secondDir, images[splitIndex:], stamp, splitIndex)
}

// SaveWorkOrder writes a versioned work-order image, fully replaces the
// work-order metadata document, and makes sure every stage directory of the
// job tree exists so later submissions and reads find the full layout.
// Returns the stored image filename.
func (s *Store) SaveWorkOrder(key jobkey.Key, image []byte, fields map[string]string) (string, error) {
	dirName := key.DirectoryName()
	if err := s.ensureJobRoot(dirName); err != nil {
		return "", err
	}
	for _, stage := range AllStages {
		if err := s.ensureStageDir(dirName, stage); err != nil {
			return "", err
		}
	}
	workOrderDir := filepath.Join(s.JobDir(dirName), StageWorkOrder.RelPath())
	name, err := saveVersioned(workOrderDir, "work_order", "png", image)
	if err != nil {
		return "", err
	}
	if err := s.writeWorkOrderMetadata(workOrderDir, fields); err != nil {
		return "", err
	}
	return name, nil
}

// GetOrderDocument locates the job for an invoice number and returns its
// order-level metadata document.
func (s *Store) GetOrderDocument(invoiceNo string) (Document, error) {
	dirName, err := s.FindByInvoiceNo(invoiceNo)
	if err != nil {
		return nil, err
	}
	doc, err := readDocument(filepath.Join(s.JobDir(dirName), orderDataFile))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *Store) prepareStage(dirName string, stage Stage) (string, error) {
	if err := s.ensureJobRoot(dirName); err != nil {
		return "", err
	}
	if err := s.ensureStageDir(dirName, stage); err != nil {
		return "", err
	}
	dir := filepath.Join(s.JobDir(dirName), stage.RelPath())
	if err := resetStageContents(dir); err != nil {
		return "", err
	}
	return dir, nil
}
