package api

import (
	"io"
	"log"
	"mime/multipart"
	"net/http"

	"github.com/headstone-world/stoneledger/internal/jobkey"
	"github.com/headstone-world/stoneledger/internal/jobstore"
)

// multipartForm holds one decoded multipart request: first-value form fields
// plus the raw file headers, read into memory on demand.
type multipartForm struct {
	fields map[string]string
	form   *multipart.Form
}

// decodeMultipart enforces POST, bounds the body, and parses the multipart
// form. On failure it writes the error response and returns ok=false so
// handlers can bail with a bare return.
func (s *Server) decodeMultipart(w http.ResponseWriter, r *http.Request) (*multipartForm, bool) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	if err := r.ParseMultipartForm(s.cfg.MaxFileSize); err != nil {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "expecting multipart form"})
		return nil, false
	}
	fields := make(map[string]string, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}
	return &multipartForm{fields: fields, form: r.MultipartForm}, true
}

// files reads every uploaded file under the given field name into artifact
// buffers. An empty batch is a validation error: every submission endpoint
// exists to store at least one file.
func (f *multipartForm) files(w http.ResponseWriter, field string) ([]jobstore.Artifact, bool) {
	headers := f.form.File[field]
	if len(headers) == 0 {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": field + " is required"})
		return nil, false
	}
	artifacts := make([]jobstore.Artifact, 0, len(headers))
	for _, fh := range headers {
		src, err := fh.Open()
		if err != nil {
			log.Printf("open upload %s: %v", fh.Filename, err)
			respondJSON(w, http.StatusBadRequest, map[string]string{"message": "failed to read upload"})
			return nil, false
		}
		data, err := io.ReadAll(src)
		src.Close()
		if err != nil {
			log.Printf("read upload %s: %v", fh.Filename, err)
			respondJSON(w, http.StatusBadRequest, map[string]string{"message": "failed to read upload"})
			return nil, false
		}
		artifacts = append(artifacts, jobstore.Artifact{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}
	return artifacts, true
}

// singleFile reads exactly one uploaded file under the field name.
func (f *multipartForm) singleFile(w http.ResponseWriter, field string) (jobstore.Artifact, bool) {
	artifacts, ok := f.files(w, field)
	if !ok {
		return jobstore.Artifact{}, false
	}
	return artifacts[0], true
}

// requireKey validates the identity fields and builds the job key. The name
// field differs per endpoint (headstoneName vs headStoneName) because the
// front end has always sent both spellings.
func requireKey(w http.ResponseWriter, fields map[string]string, nameField string) (jobkey.Key, bool) {
	name := fields[nameField]
	invoiceNo := fields["invoiceNo"]
	if name == "" || invoiceNo == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{
			"message": nameField + " and invoiceNo are required",
		})
		return jobkey.Key{}, false
	}
	return jobkey.Key{HeadstoneName: name, InvoiceNo: invoiceNo}, true
}
