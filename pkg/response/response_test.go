package response

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/college-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
)

func testContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestJSONMergesContextMeta(t *testing.T) {
	c, w := testContext()
	c.Set(MetaKey, map[string]interface{}{"cache_hit": true})

	JSON(c, http.StatusOK, gin.H{"id": "1"}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, map[string]interface{}{"mode": "room"})

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	meta := body["meta"].(map[string]interface{})
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "room", meta["mode"])
	assert.NotNil(t, body["pagination"])
}

func TestErrorUsesStatusAndDetails(t *testing.T) {
	c, w := testContext()

	Error(c, appErrors.ErrFacultyConflict.WithDetails(map[string]string{"faculty_id": "f1"}))

	require.Equal(t, http.StatusConflict, w.Code)
	var body struct {
		Error appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "FACULTY_CONFLICT", body.Error.Code)
	assert.Equal(t, map[string]interface{}{"faculty_id": "f1"}, body.Error.Details)
}

func TestAcceptedAndAttachment(t *testing.T) {
	c, w := testContext()
	Accepted(c, gin.H{"id": "job-1"})
	assert.Equal(t, http.StatusAccepted, w.Code)

	c, w = testContext()
	Attachment(c, "grid.csv", "text/csv", io.NopCloser(strings.NewReader("day,column\n")))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="grid.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, "day,column\n", w.Body.String())
}
