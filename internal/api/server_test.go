package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/headstone-world/stoneledger/internal/config"
	"github.com/headstone-world/stoneledger/internal/jobstore"
)

func newTestServer(t *testing.T) (http.Handler, *jobstore.Store) {
	t.Helper()
	store, err := jobstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	cfg := &config.Config{
		Passwords:   []string{"granite123"},
		MaxFileSize: 25 << 20,
		ViewTimeout: 5 * time.Second,
	}
	return New(cfg, store, nil, nil).Routes(), store
}

type upload struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, uploads []upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field %s: %v", k, err)
		}
	}
	for _, u := range uploads {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, u.field, u.name))
		header.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(u.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(handler http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func jpegUpload(field, name string) upload {
	return upload{field: field, name: name, contentType: "image/jpeg", data: []byte("jpeg " + name)}
}

func TestLogin(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := do(handler, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"password":"granite123"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("valid password: expected 200, got %d", rec.Code)
	}
	rec = do(handler, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{"password":"wrong"}`)))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}
	rec = do(handler, httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(`{}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing password: expected 400, got %d", rec.Code)
	}
}

func TestSaveInvoiceThenGetInvoice(t *testing.T) {
	handler, _ := newTestServer(t)

	req := multipartRequest(t, "/save-invoice", map[string]string{
		"headstoneName": "Jane Smith",
		"invoiceNo":     "INV-0007",
		"deposit":       "100",
		"customerEmail": "jane@example.com",
	}, []upload{{field: "pdf", name: "invoice.pdf", contentType: "application/pdf", data: []byte("%PDF-1.4 fake")}})
	if rec := do(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("save invoice: expected 200, got %d: %s", rec.Code, rec.Body)
	}

	rec := do(handler, httptest.NewRequest(http.MethodGet, "/invoice?invoiceNo=INV-0007", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get invoice: expected 200, got %d", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decode invoice: %v", err)
	}
	deposits, _ := doc["deposits"].([]any)
	if len(deposits) != 1 {
		t.Fatalf("expected 1 deposit, got %v", doc["deposits"])
	}

	rec = do(handler, httptest.NewRequest(http.MethodGet, "/invoice?invoiceNo=INV-9999", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown invoice: expected 404, got %d", rec.Code)
	}
}

func TestSaveInvoiceRequiresIdentity(t *testing.T) {
	handler, store := newTestServer(t)
	req := multipartRequest(t, "/save-invoice", map[string]string{
		"invoiceNo": "INV-0007",
	}, []upload{{field: "pdf", name: "invoice.pdf", contentType: "application/pdf", data: []byte("%PDF")}})
	if rec := do(handler, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	// Validation failures must leave no side effects behind.
	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read uploads root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty uploads root, got %v", entries)
	}
}

func TestCemeterySubmissionAndConsolidatedView(t *testing.T) {
	handler, _ := newTestServer(t)

	req := multipartRequest(t, "/save-invoice", map[string]string{
		"headstoneName": "Jane Smith",
		"invoiceNo":     "INV-0007",
		"deposit":       "100",
		"customerEmail": "jane@example.com",
	}, []upload{{field: "pdf", name: "invoice.pdf", contentType: "application/pdf", data: []byte("%PDF")}})
	if rec := do(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("save invoice: %d", rec.Code)
	}

	req = multipartRequest(t, "/submit-to-cemetery", map[string]string{
		"headStoneName": "Jane Smith",
		"invoiceNo":     "INV-0007",
	}, []upload{
		jpegUpload("images", "a.jpg"),
		jpegUpload("images", "b.jpg"),
		jpegUpload("images", "c.jpg"),
	})
	if rec := do(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("submit to cemetery: %d: %s", rec.Code, rec.Body)
	}

	rec := do(handler, httptest.NewRequest(http.MethodGet, "/work-order?invoiceNo=INV-0007", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get work order: expected 200, got %d", rec.Code)
	}
	var view struct {
		WorkOrderFound bool             `json:"workOrderFound"`
		Data           map[string]any   `json:"data"`
		CemeteryImages []map[string]any `json:"cemeteryImages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if view.WorkOrderFound {
		t.Fatal("work order should be flagged not found")
	}
	if view.Data["customerEmail"] != "jane@example.com" {
		t.Fatalf("fallback data missing: %v", view.Data)
	}
	if len(view.CemeteryImages) != 3 {
		t.Fatalf("expected 3 cemetery images, got %d", len(view.CemeteryImages))
	}
	inline, _ := view.CemeteryImages[0]["inlineData"].(string)
	if !strings.HasPrefix(inline, "data:image/jpeg;base64,") {
		t.Fatalf("image not inlined: %q", inline)
	}
}

func TestArtSubmissionSplit(t *testing.T) {
	handler, store := newTestServer(t)

	req := multipartRequest(t, "/art-submission", map[string]string{
		"headstoneName":  "Jane Smith",
		"invoiceNo":      "INV-0007",
		"finalArtLength": "2",
	}, []upload{
		jpegUpload("finalArtImages", "0.jpg"),
		jpegUpload("finalArtImages", "1.jpg"),
		jpegUpload("finalArtImages", "2.jpg"),
		jpegUpload("finalArtImages", "3.jpg"),
		jpegUpload("finalArtImages", "4.jpg"),
	})
	if rec := do(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("art submission: %d: %s", rec.Code, rec.Body)
	}

	jobDir := store.JobDir("Jane_Smith_INV-0007")
	finalArt, err := os.ReadDir(filepath.Join(jobDir, jobstore.StageFinalArt.RelPath()))
	if err != nil {
		t.Fatalf("read final art: %v", err)
	}
	approval, err := os.ReadDir(filepath.Join(jobDir, jobstore.StageCemeteryApproval.RelPath()))
	if err != nil {
		t.Fatalf("read cemetery approval: %v", err)
	}
	if len(finalArt) != 2 || len(approval) != 3 {
		t.Fatalf("expected 2/3 split, got %d/%d", len(finalArt), len(approval))
	}
}

func TestArtSubmissionRejectsBadLength(t *testing.T) {
	handler, _ := newTestServer(t)
	req := multipartRequest(t, "/art-submission", map[string]string{
		"headstoneName":  "Jane Smith",
		"invoiceNo":      "INV-0007",
		"finalArtLength": "9",
	}, []upload{jpegUpload("finalArtImages", "0.jpg")})
	if rec := do(handler, req); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWorkOrderSaveAndView(t *testing.T) {
	handler, _ := newTestServer(t)

	req := multipartRequest(t, "/work-order", map[string]string{
		"headStoneName": "Jane Smith",
		"invoiceNo":     "INV-0007",
		"granite":       "gray",
	}, []upload{{field: "workOrder", name: "wo.png", contentType: "image/png", data: []byte("png")}})
	if rec := do(handler, req); rec.Code != http.StatusOK {
		t.Fatalf("save work order: %d: %s", rec.Code, rec.Body)
	}

	rec := do(handler, httptest.NewRequest(http.MethodGet, "/work-order?invoiceNo=INV-0007", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("get work order: %d", rec.Code)
	}
	var view struct {
		WorkOrderFound bool           `json:"workOrderFound"`
		Data           map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	if !view.WorkOrderFound {
		t.Fatal("work order should be found after save")
	}
	if view.Data["granite"] != "gray" {
		t.Fatalf("unexpected work order data: %v", view.Data)
	}
}

func TestGetWorkOrderUnknownInvoice(t *testing.T) {
	handler, _ := newTestServer(t)
	rec := do(handler, httptest.NewRequest(http.MethodGet, "/work-order?invoiceNo=INV-4040", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestJobsSearch(t *testing.T) {
	handler, _ := newTestServer(t)
	for _, job := range []struct{ name, invoice string }{
		{"John Doe", "INV-1042"},
		{"Johnny Appleseed", "INV-2000"},
		{"Mary Major", "INV-3000"},
	} {
		req := multipartRequest(t, "/save-invoice", map[string]string{
			"headstoneName": job.name,
			"invoiceNo":     job.invoice,
		}, []upload{{field: "pdf", name: "invoice.pdf", contentType: "application/pdf", data: []byte("%PDF")}})
		if rec := do(handler, req); rec.Code != http.StatusOK {
			t.Fatalf("seed %s: %d", job.invoice, rec.Code)
		}
	}

	rec := do(handler, httptest.NewRequest(http.MethodGet, "/jobs?name=john", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search: %d", rec.Code)
	}
	var keys []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &keys); err != nil {
		t.Fatalf("decode keys: %v", err)
	}
	if len(keys) != 2 {
		t.Fatalf("expected 2 matches, got %v", keys)
	}
}
