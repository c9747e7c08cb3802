package handlers

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/squatlab/backend/internal/analysis"
	"github.com/squatlab/backend/internal/logging"
	"github.com/squatlab/backend/internal/middleware"
	"github.com/squatlab/backend/internal/models"
	"github.com/squatlab/backend/internal/mykafka"
	"github.com/squatlab/backend/internal/repo"
	"github.com/squatlab/backend/internal/storage"
)

// ResultIndexer mirrors es.ResultIndexer; nil disables indexing.
type ResultIndexer interface {
	IndexResult(ctx context.Context, r *models.AnalysisResult) error
}

type UploadHandler struct {
	Jobs     repo.JobStore
	Store    storage.Store
	Analyzer *analysis.Client
	Producer *mykafka.Producer
	Indexer  ResultIndexer
}

// Upload runs the whole orchestration: store the blob, persist the job with
// a pessimistic FAILED status, make the single analysis attempt, and record
// whatever came of it. The persisted outcome stands even if the caller is
// long gone.
func (h *UploadHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload")

	principal := middleware.PrincipalFrom(c)
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	fileHeader, err := c.FormFile("upload")
	if err != nil || fileHeader.Size == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file to upload"})
	}
	filename := fileHeader.Filename
	if filename == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot determine file name"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		l.Error("upload_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	data, err := io.ReadAll(src)
	src.Close()
	if err != nil {
		l.Error("upload_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if len(data) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "no file to upload"})
	}

	extension := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		extension = filename[i:]
	}
	key := uuid.NewString() + extension

	blobURL, err := h.Store.Put(ctx, key, bytes.NewReader(data), fileHeader.Header.Get("Content-Type"))
	if err != nil {
		l.Error("upload_failed", "status", 500, "reason", "blob store write", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	job := models.UploadJob{
		Username:         principal.Username,
		OriginalFilename: filename,
		Extension:        extension,
		BlobURL:          blobURL,
		Status:           models.StatusFailed,
	}
	if err := h.Jobs.CreateJob(ctx, &job); err != nil {
		l.Error("upload_failed", "status", 500, "reason", "job row write", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	result, outcome, err := h.Analyzer.Analyze(ctx, filename, data)
	if outcome != analysis.OutcomeSuccess {
		return h.recordFailure(c, &job, outcome, err)
	}

	feedback := strings.Join(result.Feedback, "\n")
	score := result.Score
	row := models.AnalysisResult{
		JobID:    job.ID,
		Username: job.Username,
		Score:    &score,
		Feedback: feedback,
	}
	if err := h.Jobs.SaveResult(ctx, &row); err != nil {
		l.Error("upload_failed", "status", 500, "reason", "result row write", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	if err := h.Jobs.MarkJobDone(ctx, job.ID); err != nil {
		l.Error("upload_failed", "status", 500, "reason", "job status update", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	h.index(ctx, &row)
	h.publishOutcome(ctx, &job, models.StatusDone, &score)

	l.Info("upload_analyzed", "job_id", job.ID, "score", score)
	return c.JSON(http.StatusOK, echo.Map{"score": score, "feedback": feedback})
}

// recordFailure persists the failure as the job's one AnalysisResult and
// maps the outcome to a status code. The job keeps its FAILED status.
func (h *UploadHandler) recordFailure(c echo.Context, job *models.UploadJob, outcome analysis.Outcome, cause error) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "upload", "job_id", job.ID)

	var feedback, message string
	status := http.StatusInternalServerError
	switch outcome {
	case analysis.OutcomeConnectionFailure:
		feedback = "analysis service unreachable"
		message = "cannot reach analysis service"
	case analysis.OutcomeClientRejected:
		feedback = "analysis request rejected"
		message = "analysis request was rejected"
		status = http.StatusBadRequest
	case analysis.OutcomeServerFault:
		feedback = "analysis server error"
		message = "analysis service failed"
	default:
		feedback = "analysis failed"
		message = "analysis failed"
	}

	row := models.AnalysisResult{
		JobID:    job.ID,
		Username: job.Username,
		Score:    nil,
		Feedback: feedback,
	}
	if err := h.Jobs.SaveResult(ctx, &row); err != nil {
		l.Error("upload_failed", "status", 500, "reason", "result row write", "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	h.index(ctx, &row)
	h.publishOutcome(ctx, job, models.StatusFailed, nil)

	l.Warn("upload_analysis_failed", "status", status, "error", cause)
	return c.JSON(status, echo.Map{"error": message})
}

func (h *UploadHandler) index(ctx context.Context, row *models.AnalysisResult) {
	if h.Indexer == nil {
		return
	}
	if err := h.Indexer.IndexResult(ctx, row); err != nil {
		logging.FromContext(ctx).Error("es_index_failed", "result_id", row.ID, "error", err)
	}
}

func (h *UploadHandler) publishOutcome(ctx context.Context, job *models.UploadJob, status models.JobStatus, score *float64) {
	event := echo.Map{
		"type":     "upload_analyzed",
		"job_id":   job.ID,
		"username": job.Username,
		"status":   status,
	}
	if score != nil {
		event["score"] = *score
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(pubCtx, "upload_events", strconv.FormatUint(uint64(job.ID), 10), event); err != nil {
		logging.FromContext(ctx).Error("kafka_publish_failed", "topic", "upload_events", "error", err)
	}
}
