package jobstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/headstone-world/stoneledger/internal/jobkey"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return store
}

func jpeg(name string) Artifact {
	return Artifact{Name: name, ContentType: "image/jpeg", Data: []byte("jpeg-bytes-" + name)}
}

func listFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir %s: %v", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names
}

func TestSaveVersionedNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	for i, want := range []string{"invoice_v1.pdf", "invoice_v2.pdf", "invoice_v3.pdf"} {
		got, err := saveVersioned(dir, "invoice", "pdf", []byte{byte(i)})
		if err != nil {
			t.Fatalf("save version %d: %v", i+1, err)
		}
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
	names := listFiles(t, dir)
	if len(names) != 3 {
		t.Fatalf("expected 3 versions on disk, got %v", names)
	}
	data, err := os.ReadFile(filepath.Join(dir, "invoice_v1.pdf"))
	if err != nil || len(data) != 1 || data[0] != 0 {
		t.Fatalf("first version was clobbered: %v %v", data, err)
	}
}

func TestWriteBatchNaming(t *testing.T) {
	dir := t.TempDir()
	batch := []Artifact{
		{Name: "a", ContentType: "image/jpeg", Data: []byte("a")},
		{Name: "b", ContentType: "image/png", Data: []byte("b")},
		{Name: "c", ContentType: "application/x-mystery", Data: []byte("c")},
	}
	if err := writeBatch(dir, batch, 1700000000000, 0); err != nil {
		t.Fatalf("write batch: %v", err)
	}
	for _, want := range []string{
		"1700000000000_0.jpg",
		"1700000000000_1.png",
		"1700000000000_2.unknown",
	} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Fatalf("expected %s: %v", want, err)
		}
	}
}

func TestSubmitStageReplacesPriorContents(t *testing.T) {
	store := newTestStore(t)
	key := jobkey.Key{HeadstoneName: "John Doe", InvoiceNo: "INV-1042"}
	if err := store.SubmitStage(key, StageCemeterySubmission, []Artifact{jpeg("one"), jpeg("two")}); err != nil {
		t.Fatalf("first submission: %v", err)
	}
	stageDir := filepath.Join(store.JobDir(key.DirectoryName()), StageCemeterySubmission.RelPath())
	if got := listFiles(t, stageDir); len(got) != 2 {
		t.Fatalf("expected 2 files after first submission, got %v", got)
	}
	if err := store.SubmitStage(key, StageCemeterySubmission, []Artifact{jpeg("three")}); err != nil {
		t.Fatalf("second submission: %v", err)
	}
	if got := listFiles(t, stageDir); len(got) != 1 {
		t.Fatalf("resubmission should replace contents, got %v", got)
	}
}

func TestSubmitSplitPlacesImagesAtBoundary(t *testing.T) {
	store := newTestStore(t)
	key := jobkey.Key{HeadstoneName: "Jane Smith", InvoiceNo: "INV-0007"}
	batch := []Artifact{jpeg("0"), jpeg("1"), jpeg("2"), jpeg("3"), jpeg("4")}
	if err := store.SubmitSplit(key, StageFinalArt, StageCemeteryApproval, batch, 2); err != nil {
		t.Fatalf("split submission: %v", err)
	}
	jobDir := store.JobDir(key.DirectoryName())
	finalArt := listFiles(t, filepath.Join(jobDir, StageFinalArt.RelPath()))
	approval := listFiles(t, filepath.Join(jobDir, StageCemeteryApproval.RelPath()))
	if len(finalArt) != 2 || len(approval) != 3 {
		t.Fatalf("expected 2/3 split, got %v and %v", finalArt, approval)
	}
	// Indices stay unique across the whole batch.
	for _, name := range approval {
		if strings.HasSuffix(name, "_0.jpg") || strings.HasSuffix(name, "_1.jpg") {
			t.Fatalf("approval directory reuses final-art index: %v", approval)
		}
	}
}

func TestSubmitSplitRejectsBadIndex(t *testing.T) {
	store := newTestStore(t)
	key := jobkey.Key{HeadstoneName: "Jane Smith", InvoiceNo: "INV-0007"}
	if err := store.SubmitSplit(key, StageFinalArt, StageCemeteryApproval, []Artifact{jpeg("0")}, 5); err == nil {
		t.Fatal("expected error for out-of-range split index")
	}
}
