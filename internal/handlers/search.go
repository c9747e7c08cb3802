package handlers

import (
	"net/http"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"

	"github.com/squatlab/backend/internal/es"
	"github.com/squatlab/backend/internal/logging"
	"github.com/squatlab/backend/internal/middleware"
)

type SearchHandler struct {
	ES    *elasticsearch.Client
	Index string
}

// Search full-text matches the caller's own feedback lines.
func (h *SearchHandler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search")

	principal := middleware.PrincipalFrom(c)
	if principal == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	q := c.QueryParam("q")
	if q == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "query is required"})
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 10
	}
	from := (page - 1) * size

	total, docs, err := es.SearchFeedback(ctx, h.ES, h.Index, principal.Username, q, from, size)
	if err != nil {
		l.Error("search_failed", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}

	return c.JSON(http.StatusOK, echo.Map{"total": total, "results": docs})
}
