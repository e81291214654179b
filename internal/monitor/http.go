package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/your-org/segmentflow/internal/pipeline"
	"github.com/your-org/segmentflow/pkg/queue"
	"github.com/your-org/segmentflow/pkg/storage/objectstore"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// QueueClient is the slice of the queue client the monitor needs.
type QueueClient interface {
	Stats(ctx context.Context) (queue.Stats, error)
	EnqueueBatch(ctx context.Context, entries []queue.BatchEntry) (queue.BatchResult, error)
	Purge(ctx context.Context) error
}

// Store is the slice of the object store the monitor needs.
type Store interface {
	List(ctx context.Context, bucket, prefix string) <-chan objectstore.ObjectInfo
	GetJSON(ctx context.Context, bucket, key string, v any) error
	Delete(ctx context.Context, bucket, key string) error
}

// HTTPHandler exposes the pipeline's outward primitives: job enqueue, queue
// depth stats, and object listing.
type HTTPHandler struct {
	download QueueClient
	split    QueueClient
	upload   QueueClient
	store    Store
	logger   *zap.Logger

	outputBucket string
	router       chi.Router
}

// Params wires an HTTPHandler.
type Params struct {
	Download QueueClient
	Split    QueueClient
	Upload   QueueClient
	Store    Store
	Logger   *zap.Logger

	// OutputBucket is the default stamped on split jobs that omit one.
	OutputBucket string
}

// NewHTTPHandler constructs the HTTP handler and wires routes.
func NewHTTPHandler(p Params) *HTTPHandler {
	h := &HTTPHandler{
		download:     p.Download,
		split:        p.Split,
		upload:       p.Upload,
		store:        p.Store,
		logger:       p.Logger,
		outputBucket: p.OutputBucket,
	}
	h.buildRouter()
	return h
}

func (h *HTTPHandler) buildRouter() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Minute))

	r.Get("/healthz", h.handleHealth)
	r.Get("/api/v1/queues", h.handleQueueStats)
	r.Delete("/api/v1/queues/{name}", h.handlePurgeQueue)
	r.Get("/api/v1/objects", h.handleListObjects)
	r.Delete("/api/v1/objects", h.handleDeleteObject)
	r.Get("/api/v1/jobs/{jobID}/manifest", h.handleManifest)
	r.Post("/api/v1/jobs/download", h.handleEnqueueDownload)
	r.Post("/api/v1/jobs/split", h.handleEnqueueSplit)
	r.Post("/api/v1/jobs/upload", h.handleEnqueueUpload)

	h.router = r
}

// Router exposes the configured chi router.
func (h *HTTPHandler) Router() http.Handler {
	return h.router
}

func (h *HTTPHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *HTTPHandler) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats := map[string]queue.Stats{}
	for name, client := range map[string]QueueClient{
		"download": h.download,
		"split":    h.split,
		"upload":   h.upload,
	} {
		s, err := client.Stats(ctx)
		if err != nil {
			h.logger.Error("queue stats failed", zap.String("queue", name), zap.Error(err))
			writeError(w, http.StatusBadGateway, "queue stats unavailable")
			return
		}
		stats[name] = s
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *HTTPHandler) handlePurgeQueue(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	clients := map[string]QueueClient{
		"download": h.download,
		"split":    h.split,
		"upload":   h.upload,
	}
	client, ok := clients[name]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown queue "+name)
		return
	}
	if err := client.Purge(r.Context()); err != nil {
		h.logger.Error("queue purge failed", zap.String("queue", name), zap.Error(err))
		writeError(w, http.StatusBadGateway, "purge failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"purged": name})
}

// handleManifest serves the manifest written for a job under its default
// output prefix.
func (h *HTTPHandler) handleManifest(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var manifest pipeline.Manifest
	if err := h.store.GetJSON(r.Context(), h.outputBucket, pipeline.ManifestKey(jobID), &manifest); err != nil {
		writeError(w, http.StatusNotFound, "manifest not found for job "+jobID)
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}

func (h *HTTPHandler) handleListObjects(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	if bucket == "" {
		writeError(w, http.StatusBadRequest, "bucket is required")
		return
	}
	prefix := r.URL.Query().Get("prefix")

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	type listedObject struct {
		Key      string    `json:"key"`
		Size     int64     `json:"size"`
		Modified time.Time `json:"modified"`
	}
	objects := make([]listedObject, 0, limit)
	for info := range h.store.List(ctx, bucket, prefix) {
		if info.Err != nil {
			h.logger.Error("object listing failed", zap.String("bucket", bucket), zap.Error(info.Err))
			writeError(w, http.StatusBadGateway, "object listing failed")
			return
		}
		objects = append(objects, listedObject{Key: info.Key, Size: info.Size, Modified: info.Modified})
		if len(objects) >= limit {
			break
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"bucket":  bucket,
		"prefix":  prefix,
		"objects": objects,
	})
}

func (h *HTTPHandler) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	bucket := r.URL.Query().Get("bucket")
	key := r.URL.Query().Get("key")
	if bucket == "" || key == "" {
		writeError(w, http.StatusBadRequest, "bucket and key are required")
		return
	}
	if err := h.store.Delete(r.Context(), bucket, key); err != nil {
		h.logger.Error("object delete failed", zap.String("bucket", bucket), zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusBadGateway, "delete failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": bucket + "/" + key})
}

func (h *HTTPHandler) handleEnqueueDownload(w http.ResponseWriter, r *http.Request) {
	h.enqueueBatch(w, r, h.download, func(raw json.RawMessage) (queue.BatchEntry, error) {
		job, err := pipeline.DecodeDownloadJob(raw)
		if err != nil {
			return queue.BatchEntry{}, err
		}
		body, err := json.Marshal(job)
		if err != nil {
			return queue.BatchEntry{}, err
		}
		return queue.BatchEntry{ID: job.JobID, Body: body, GroupID: job.JobID}, nil
	})
}

func (h *HTTPHandler) handleEnqueueSplit(w http.ResponseWriter, r *http.Request) {
	h.enqueueBatch(w, r, h.split, func(raw json.RawMessage) (queue.BatchEntry, error) {
		job, err := pipeline.DecodeSplitJob(raw, h.outputBucket)
		if err != nil {
			return queue.BatchEntry{}, err
		}
		body, err := json.Marshal(job)
		if err != nil {
			return queue.BatchEntry{}, err
		}
		return queue.BatchEntry{ID: job.JobID, Body: body, GroupID: job.JobID}, nil
	})
}

func (h *HTTPHandler) handleEnqueueUpload(w http.ResponseWriter, r *http.Request) {
	h.enqueueBatch(w, r, h.upload, func(raw json.RawMessage) (queue.BatchEntry, error) {
		job, err := pipeline.DecodeUploadJob(raw)
		if err != nil {
			return queue.BatchEntry{}, err
		}
		body, err := json.Marshal(job)
		if err != nil {
			return queue.BatchEntry{}, err
		}
		return queue.BatchEntry{Body: body}, nil
	})
}

func (h *HTTPHandler) enqueueBatch(w http.ResponseWriter, r *http.Request, client QueueClient, build func(json.RawMessage) (queue.BatchEntry, error)) {
	var jobs []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&jobs); err != nil {
		writeError(w, http.StatusBadRequest, "body must be a JSON array of jobs")
		return
	}
	if len(jobs) == 0 {
		writeError(w, http.StatusBadRequest, "no jobs supplied")
		return
	}
	if len(jobs) > queue.MaxBatchSize {
		writeError(w, http.StatusBadRequest, "at most 10 jobs per request")
		return
	}

	entries := make([]queue.BatchEntry, 0, len(jobs))
	for i, raw := range jobs {
		entry, err := build(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "job "+strconv.Itoa(i)+": "+err.Error())
			return
		}
		entries = append(entries, entry)
	}

	result, err := client.EnqueueBatch(r.Context(), entries)
	if err != nil {
		h.logger.Error("batch enqueue failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "enqueue failed")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": result.Accepted,
		"rejected": result.Rejected,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}
