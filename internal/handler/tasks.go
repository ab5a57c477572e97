package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/campfield/ticketoffice/internal/repository"
)

// TaskHandler exposes scheduled task run history for operators.
type TaskHandler struct {
	Repo *repository.TaskResultRepo
}

func NewTaskHandler(r *repository.TaskResultRepo) *TaskHandler {
	return &TaskHandler{Repo: r}
}

// Results returns the latest runs of the named scheduled task,
// newest first. ?limit= caps the count.
func (h *TaskHandler) Results(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	results, err := h.Repo.ListRecent(ctx, c.Param("name"), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, results)
}
