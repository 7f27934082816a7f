package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/enrollment-backend/internal/http/response"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
	"github.com/yungbote/enrollment-backend/internal/services"
)

type ModuleHandler struct {
	log *logger.Logger
	svc services.ModuleService
}

func NewModuleHandler(log *logger.Logger, svc services.ModuleService) *ModuleHandler {
	return &ModuleHandler{log: log.With("handler", "ModuleHandler"), svc: svc}
}

// GET /api/enrollments/:id/modules
func (h *ModuleHandler) ListForEnrollment(c *gin.Context) {
	enrollmentID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	modules, err := h.svc.List(c.Request.Context(), enrollmentID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, gin.H{"modules": modules})
}

// POST /api/modules/:id/watch
func (h *ModuleHandler) Watch(c *gin.Context) {
	moduleID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	res, err := h.svc.Watch(c.Request.Context(), moduleID)
	if err != nil {
		response.RespondServiceError(c, h.log, err)
		return
	}
	response.RespondOK(c, res)
}
