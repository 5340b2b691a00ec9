package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/internal/middleware"
	"github.com/noah-isme/college-scheduling-api/internal/models"
	"github.com/noah-isme/college-scheduling-api/internal/service"
	appErrors "github.com/noah-isme/college-scheduling-api/pkg/errors"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

func requestMeta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

// actorFromContext builds the service actor or writes 401 and returns false.
func actorFromContext(c *gin.Context) (service.Actor, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return service.Actor{}, false
	}
	return service.Actor{UserID: claims.UserID, Role: claims.Role, Email: claims.Email, Meta: requestMeta(c)}, true
}

// bindJSON decodes the body into dest or writes a validation error.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

// listQuery reads page, limit, sort, order and search.
func listQuery(c *gin.Context) models.ListQuery {
	var q models.ListQuery
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		q.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		q.PageSize = size
	}
	q.SortBy = c.Query("sort")
	q.SortOrder = c.Query("order")
	q.Search = c.Query("search")
	return q
}

func boolQuery(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	val, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &val
}

// dayQuery parses an optional day query parameter, accepting 0-6 or a day name.
func dayQuery(c *gin.Context, key string) (*models.Weekday, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	day, err := models.ParseWeekday(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid "+key)
	}
	return &day, nil
}
