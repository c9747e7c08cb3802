package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/squatlab/backend/internal/logging"
	"github.com/squatlab/backend/internal/middleware"
	"github.com/squatlab/backend/internal/models"
)

type videoEntry struct {
	ID               uint             `json:"id"`
	OriginalFilename string           `json:"original_filename"`
	BlobURL          string           `json:"blob_url"`
	Status           models.JobStatus `json:"status"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	Result           *videoResult     `json:"result"`
}

type videoResult struct {
	Score      *float64  `json:"score"`
	Feedback   string    `json:"feedback"`
	AnalyzedAt time.Time `json:"analyzed_at"`
}

// Videos lists the caller's upload jobs, newest first, each with its
// analysis result when one exists.
func (h *UploadHandler) Videos(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "videos")

	principal := middleware.PrincipalFrom(c)
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	jobs, err := h.Jobs.ListJobsByUsername(ctx, principal.Username)
	if err != nil {
		l.Error("videos_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	ids := make([]uint, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	results, err := h.Jobs.ListResultsByJobIDs(ctx, ids)
	if err != nil {
		l.Error("videos_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	byJob := make(map[uint]*models.AnalysisResult, len(results))
	for i := range results {
		byJob[results[i].JobID] = &results[i]
	}

	entries := make([]videoEntry, len(jobs))
	for i, j := range jobs {
		entry := videoEntry{
			ID:               j.ID,
			OriginalFilename: j.OriginalFilename,
			BlobURL:          j.BlobURL,
			Status:           j.Status,
			UploadedAt:       j.UploadedAt,
		}
		if r, ok := byJob[j.ID]; ok {
			entry.Result = &videoResult{
				Score:      r.Score,
				Feedback:   r.Feedback,
				AnalyzedAt: r.AnalyzedAt,
			}
		}
		entries[i] = entry
	}

	return c.JSON(http.StatusOK, echo.Map{"videos": entries})
}
