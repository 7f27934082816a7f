package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/enrollment-backend/internal/http/response"
	"github.com/yungbote/enrollment-backend/internal/platform/ctxutil"
)

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil || id == uuid.Nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func intParam(c *gin.Context, name string) (int, bool) {
	n, err := strconv.Atoi(c.Param(name))
	if err != nil || n < 1 {
		response.RespondError(c, http.StatusBadRequest, "invalid_"+name, fmt.Errorf("invalid %s", name))
		return 0, false
	}
	return n, true
}

// optionalUUID parses raw, falling back to the authenticated user when raw is empty.
func optionalUUID(c *gin.Context, raw string) (uuid.UUID, bool) {
	if raw == "" {
		if rd := ctxutil.GetRequestData(c.Request.Context()); rd != nil {
			return rd.UserID, true
		}
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_input", fmt.Errorf("invalid uuid %q", raw))
		return uuid.Nil, false
	}
	return id, true
}
