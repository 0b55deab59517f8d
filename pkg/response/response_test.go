package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/contravention-api/internal/models"
	appErrors "github.com/noah-isme/contravention-api/pkg/errors"
	"github.com/noah-isme/contravention-api/pkg/middleware/requestid"
)

func serve(t *testing.T, handler gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(requestid.Middleware())
	router.GET("/", handler)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-42")
	router.ServeHTTP(w, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestErrorEchoesRequestIDAndDetails(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		appErr := appErrors.Clone(appErrors.ErrValidation, "invalid payload")
		appErr.Details = []appErrors.FieldError{{Field: "Note", Rule: "required"}}
		Error(c, appErr)
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, "req-42", meta["request_id"])
	errBody := body["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	details := errBody["details"].([]interface{})
	require.Len(t, details, 1)
	assert.Equal(t, "Note", details[0].(map[string]interface{})["field"])
}

func TestErrorAttachesInternalCause(t *testing.T) {
	var recorded []*gin.Error
	w, body := serve(t, func(c *gin.Context) {
		Error(c, errors.New("connection reset"))
		recorded = c.Errors
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "INTERNAL_ERROR", body["error"].(map[string]interface{})["code"])
	require.Len(t, recorded, 1)
	assert.EqualError(t, recorded[0].Err, "connection reset")
}

func TestPageCarriesPagination(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) {
		Page(c, []string{"emp-1"}, &models.Pagination{Page: 2, PageSize: 1, TotalCount: 3})
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []interface{}{"emp-1"}, body["data"])
	require.Contains(t, body, "pagination")
	_, hasMeta := body["meta"]
	assert.False(t, hasMeta)
}
