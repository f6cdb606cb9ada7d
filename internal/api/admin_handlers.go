package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/surprisebag/internal/api/middleware"
	"github.com/example/surprisebag/internal/domain/admintask"
)

type AdminHandlers struct {
	tasks *admintask.Service
	log   *zap.Logger
}

func NewAdminHandlers(tasks *admintask.Service, log *zap.Logger) *AdminHandlers {
	return &AdminHandlers{tasks: tasks, log: log}
}

type resolveRequest struct {
	Comment string `json:"comment"`
}

func (h *AdminHandlers) ListTasks(c *gin.Context) {
	page, err := h.tasks.List(c.Request.Context(), c.Query("status"), queryInt(c, "page"), queryInt(c, "pageSize"))
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *AdminHandlers) GetTask(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	t, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *AdminHandlers) ClaimTask(c *gin.Context) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	t, err := h.tasks.Claim(c.Request.Context(), id)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h *AdminHandlers) ApproveTask(c *gin.Context) {
	h.resolve(c, h.tasks.Approve)
}

func (h *AdminHandlers) RejectTask(c *gin.Context) {
	h.resolve(c, h.tasks.Reject)
}

func (h *AdminHandlers) resolve(c *gin.Context, fn func(context.Context, int64, string) (*admintask.Task, error)) {
	id, ok := pathID(c, h.log)
	if !ok {
		return
	}
	var req resolveRequest
	// the body is optional for approvals
	if c.Request.ContentLength != 0 && !bindJSON(c, h.log, &req) {
		return
	}
	t, err := fn(c.Request.Context(), id, req.Comment)
	if err != nil {
		middleware.WriteError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
