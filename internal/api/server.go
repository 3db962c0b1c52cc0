// Package api exposes the HTTP surface of StoneLedger: login, the per-stage
// submission endpoints, and the job read endpoints. Handlers decode
// multipart bodies into field maps and in-memory buffers; everything below
// them works on those, never on the request.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hibiken/asynq"

	"github.com/headstone-world/stoneledger/internal/config"
	"github.com/headstone-world/stoneledger/internal/eventlog"
	"github.com/headstone-world/stoneledger/internal/jobkey"
	"github.com/headstone-world/stoneledger/internal/jobstore"
	pdfutil "github.com/headstone-world/stoneledger/internal/pdf"
	"github.com/headstone-world/stoneledger/internal/queue"
)

// Server wires configuration, the job store, the task queue, and the event
// log behind the HTTP handlers.
type Server struct {
	cfg    *config.Config
	store  *jobstore.Store
	queue  *asynq.Client
	events eventlog.Recorder
	server *http.Server
	once   sync.Once
}

// New constructs a Server. queueClient may be nil (notifications and
// archival disabled); events may be nil (audit log disabled).
func New(cfg *config.Config, store *jobstore.Store, queueClient *asynq.Client, events eventlog.Recorder) *Server {
	if events == nil {
		events = eventlog.Noop{}
	}
	return &Server{cfg: cfg, store: store, queue: queueClient, events: events}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: corsMiddleware(loggingMiddleware(s.Routes())),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Routes builds the request mux. Exposed for handler tests.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/save-invoice", s.handleSaveInvoice)
	mux.HandleFunc("/submit-to-cemetery", s.handleSubmitToCemetery)
	mux.HandleFunc("/art-submission", s.handleArtSubmission)
	mux.HandleFunc("/engraving-submission", s.handleEngravingSubmission)
	mux.HandleFunc("/foundation-submission", s.handleFoundationSubmission)
	mux.HandleFunc("/work-order", s.handleWorkOrder)
	mux.HandleFunc("/jobs", s.handleJobs)
	mux.HandleFunc("/invoice", s.handleInvoice)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var body struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Password == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "Password is required"})
		return
	}
	for _, p := range s.cfg.Passwords {
		if p == body.Password {
			respondJSON(w, http.StatusOK, map[string]string{"message": "Authentication successful"})
			return
		}
	}
	respondJSON(w, http.StatusUnauthorized, map[string]string{"message": "Incorrect Password"})
}

func (s *Server) handleSaveInvoice(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeMultipart(w, r)
	if !ok {
		return
	}
	key, ok := requireKey(w, form.fields, "headstoneName")
	if !ok {
		return
	}
	pdf, ok := form.singleFile(w, "pdf")
	if !ok {
		return
	}
	if _, err := pdfutil.PageCount(pdf.Data); err != nil {
		// Store it anyway; scanners produce odd PDFs and the operator has
		// no better copy.
		log.Printf("invoice %s failed pdf check: %v", key.InvoiceNo, err)
	}
	name, err := s.store.SaveInvoice(key, pdf.Data, form.fields, form.fields["deposit"])
	if err != nil {
		s.internalError(w, "save invoice", err)
		return
	}
	s.events.Record(r.Context(), "invoice_saved", key.DirectoryName(), key.InvoiceNo, name)
	s.enqueueArchive(r.Context(), key)
	respondJSON(w, http.StatusOK, map[string]string{"message": "PDF file uploaded and saved successfully."})
}

func (s *Server) handleSubmitToCemetery(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeMultipart(w, r)
	if !ok {
		return
	}
	// This endpoint has always spelled the field headStoneName; the front
	// end depends on it.
	key, ok := requireKey(w, form.fields, "headStoneName")
	if !ok {
		return
	}
	images, ok := form.files(w, "images")
	if !ok {
		return
	}
	if err := s.store.SubmitStage(key, jobstore.StageCemeterySubmission, images); err != nil {
		s.internalError(w, "submit to cemetery", err)
		return
	}
	s.events.Record(r.Context(), "cemetery_submitted", key.DirectoryName(), key.InvoiceNo, strconv.Itoa(len(images))+" images")
	s.notifyAll(r.Context(), key, key.HeadstoneName+": Prepare cemetery application")
	s.enqueueArchive(r.Context(), key)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Images saved and submitted to cemetery successfully."})
}

func (s *Server) handleArtSubmission(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeMultipart(w, r)
	if !ok {
		return
	}
	key, ok := requireKey(w, form.fields, "headstoneName")
	if !ok {
		return
	}
	images, ok := form.files(w, "finalArtImages")
	if !ok {
		return
	}
	splitIndex, err := strconv.Atoi(form.fields["finalArtLength"])
	if err != nil || splitIndex < 0 || splitIndex > len(images) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "finalArtLength is invalid"})
		return
	}
	if err := s.store.SubmitSplit(key, jobstore.StageFinalArt, jobstore.StageCemeteryApproval, images, splitIndex); err != nil {
		s.internalError(w, "art submission", err)
		return
	}
	s.events.Record(r.Context(), "art_submitted", key.DirectoryName(), key.InvoiceNo, strconv.Itoa(len(images))+" images")
	s.enqueueArchive(r.Context(), key)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Art submission successful!"})
}

func (s *Server) handleEngravingSubmission(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeMultipart(w, r)
	if !ok {
		return
	}
	key, ok := requireKey(w, form.fields, "headstoneName")
	if !ok {
		return
	}
	images, ok := form.files(w, "engravingImages")
	if !ok {
		return
	}
	if err := s.store.SubmitStage(key, jobstore.StageEngravingSubmission, images); err != nil {
		s.internalError(w, "engraving submission", err)
		return
	}
	s.events.Record(r.Context(), "engraving_submitted", key.DirectoryName(), key.InvoiceNo, strconv.Itoa(len(images))+" images")
	s.notifyAll(r.Context(), key, key.HeadstoneName+": Monument install")
	s.enqueueArchive(r.Context(), key)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Engraving submission successful!"})
}

func (s *Server) handleFoundationSubmission(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeMultipart(w, r)
	if !ok {
		return
	}
	key, ok := requireKey(w, form.fields, "headstoneName")
	if !ok {
		return
	}
	images, ok := form.files(w, "foundationInstallImages")
	if !ok {
		return
	}
	splitIndex, err := strconv.Atoi(form.fields["foundationImagesLength"])
	if err != nil || splitIndex < 0 || splitIndex > len(images) {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "foundationImagesLength is invalid"})
		return
	}
	if err := s.store.SubmitSplit(key, jobstore.StageFoundationInstall, jobstore.StageMonumentSetting, images, splitIndex); err != nil {
		s.internalError(w, "foundation submission", err)
		return
	}
	s.events.Record(r.Context(), "foundation_submitted", key.DirectoryName(), key.InvoiceNo, strconv.Itoa(len(images))+" images")
	s.notifyAll(r.Context(), key, key.HeadstoneName+": Monument setting")
	s.enqueueArchive(r.Context(), key)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Foundation/Setting submission successful!"})
}

func (s *Server) handleWorkOrder(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSaveWorkOrder(w, r)
	case http.MethodGet:
		s.handleGetWorkOrder(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSaveWorkOrder(w http.ResponseWriter, r *http.Request) {
	form, ok := s.decodeMultipart(w, r)
	if !ok {
		return
	}
	key, ok := requireKey(w, form.fields, "headStoneName")
	if !ok {
		return
	}
	image, ok := form.singleFile(w, "workOrder")
	if !ok {
		return
	}
	name, err := s.store.SaveWorkOrder(key, image.Data, form.fields)
	if err != nil {
		s.internalError(w, "save work order", err)
		return
	}
	s.events.Record(r.Context(), "work_order_saved", key.DirectoryName(), key.InvoiceNo, name)
	s.enqueueArchive(r.Context(), key)
	respondJSON(w, http.StatusOK, map[string]string{"message": "Work Order saved successfully!"})
}

func (s *Server) handleGetWorkOrder(w http.ResponseWriter, r *http.Request) {
	invoiceNo := r.URL.Query().Get("invoiceNo")
	if invoiceNo == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invoiceNo is required"})
		return
	}
	dirName, err := s.store.FindByInvoiceNo(invoiceNo)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"message": "job not found"})
			return
		}
		s.internalError(w, "locate job", err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ViewTimeout)
	defer cancel()
	view, err := s.store.WorkOrderView(ctx, dirName)
	if err != nil {
		s.internalError(w, "assemble work order view", err)
		return
	}
	// A job without a work order still answers 200: the view carries the
	// order-level fallback and workOrderFound=false.
	respondJSON(w, http.StatusOK, view)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	fragment := r.URL.Query().Get("name")
	if fragment == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "name is required"})
		return
	}
	keys, err := s.store.ListJobsByName(fragment)
	if err != nil {
		s.internalError(w, "list jobs", err)
		return
	}
	respondJSON(w, http.StatusOK, keys)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	invoiceNo := r.URL.Query().Get("invoiceNo")
	if invoiceNo == "" {
		respondJSON(w, http.StatusBadRequest, map[string]string{"message": "invoiceNo is required"})
		return
	}
	doc, err := s.store.GetOrderDocument(invoiceNo)
	if err != nil {
		if errors.Is(err, jobstore.ErrNotFound) {
			respondJSON(w, http.StatusNotFound, map[string]string{"message": "invoice not found"})
			return
		}
		s.internalError(w, "read invoice", err)
		return
	}
	respondJSON(w, http.StatusOK, doc)
}

// notifyAll enqueues one mail task per configured recipient. Failures are
// logged only: notification must never fail the write that triggered it.
func (s *Server) notifyAll(ctx context.Context, key jobkey.Key, subject string) {
	if s.queue == nil || len(s.cfg.NotifyRecipients) == 0 {
		return
	}
	for _, recipient := range s.cfg.NotifyRecipients {
		payload := queue.NotifyPayload{
			Recipient: recipient,
			Subject:   subject,
			Body:      "From Headstone World",
		}
		if err := queue.EnqueueNotify(ctx, s.queue, payload); err != nil {
			log.Printf("enqueue notify for %s: %v", key.InvoiceNo, err)
		}
	}
}

// enqueueArchive schedules an offsite mirror of the job directory.
func (s *Server) enqueueArchive(ctx context.Context, key jobkey.Key) {
	if s.queue == nil || !s.cfg.ArchiveEnabled() {
		return
	}
	payload := queue.ArchivePayload{DirName: key.DirectoryName()}
	if err := queue.EnqueueArchive(ctx, s.queue, payload); err != nil {
		log.Printf("enqueue archive for %s: %v", key.InvoiceNo, err)
	}
}

func (s *Server) internalError(w http.ResponseWriter, op string, err error) {
	log.Printf("%s: %v", op, err)
	respondJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal Server Error."})
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
