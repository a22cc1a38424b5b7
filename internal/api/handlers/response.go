package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/intelliinspect-go/internal/middleware"
	"github.com/irfndi/intelliinspect-go/internal/models"
	"github.com/irfndi/intelliinspect-go/internal/utils"
)

func respondOK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}

// statusOf maps the typed service errors onto HTTP status codes.
func statusOf(err error) int {
	var inputErr *utils.InputError
	var validationErr *utils.ValidationError
	var upstreamErr *utils.UpstreamError

	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &validationErr):
		if validationErr.Code == utils.CodeStaleGeneration {
			return http.StatusConflict
		}
		return http.StatusBadRequest
	case errors.As(err, &upstreamErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as {"success": false, "error", "code"}; data, when
// non-nil, is included so callers can return a structured failure.
func respondError(c *gin.Context, err error, data interface{}) {
	status := statusOf(err)
	_ = c.Error(err)

	message := err.Error()
	if status == http.StatusInternalServerError {
		middleware.RecordError(c, err, "internal error")
		message = "Internal server error"
	}

	body := gin.H{
		"success": false,
		"error":   message,
	}
	if code := utils.CodeOf(err); code != "" {
		body["code"] = code
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, message string) {
	respondError(c, utils.NewInputError(utils.CodeInvalidArgument, message), nil)
}

// queryWindow parses the start and end query parameters.
func queryWindow(c *gin.Context) (models.Window, bool) {
	start, err := utils.ParseTimestamp(c.Query("start"))
	if err != nil {
		badRequest(c, "start: "+err.Error())
		return models.Window{}, false
	}
	end, err := utils.ParseTimestamp(c.Query("end"))
	if err != nil {
		badRequest(c, "end: "+err.Error())
		return models.Window{}, false
	}
	return models.Window{Start: start, End: end}, true
}

// queryInt reads an optional integer query parameter.
func queryInt(c *gin.Context, name string, fallback int64) (int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name+" parameter")
		return 0, false
	}
	return v, true
}
