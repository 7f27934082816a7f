package response

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/yungbote/enrollment-backend/internal/platform/apierr"
	"github.com/yungbote/enrollment-backend/internal/platform/logger"
)

type APIError struct {
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

// RespondServiceError maps a service error onto its HTTP status. Internal failures are
// logged and replaced by a generic message.
func RespondServiceError(c *gin.Context, log *logger.Logger, err error) {
	ae := apierr.FromDomain(err)
	if ae == nil {
		RespondError(c, http.StatusInternalServerError, "internal_error", nil)
		return
	}
	if ae.Status >= http.StatusInternalServerError {
		if log != nil {
			log.Error("Request failed", "path", c.FullPath(), "error", err)
		}
		RespondError(c, ae.Status, ae.Code, errors.New("internal server error"))
		return
	}
	RespondError(c, ae.Status, ae.Code, ae.Err)
}

// RespondBindError reports a request body or query that failed binding or validation.
func RespondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, strings.ToLower(fe.Field())+":"+fe.Tag())
		}
		c.JSON(http.StatusBadRequest, ErrorEnvelope{
			Error: APIError{
				Message: "request validation failed",
				Code:    "invalid_input",
				Fields:  fields,
			},
		})
		return
	}
	RespondError(c, http.StatusBadRequest, "invalid_input", err)
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
