package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/college-scheduling-api/pkg/middleware/requestid"
	"github.com/noah-isme/college-scheduling-api/pkg/response"
)

const cacheHitKey = "cache_hit"

// WithResponseMeta initialises the metadata map merged into response
// envelopes. It must run after the request id middleware.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		meta := map[string]interface{}{"started_at": time.Now().UTC().Format(time.RFC3339)}
		if id := requestid.Value(c); id != "" {
			meta["request_id"] = id
		}
		c.Set(response.MetaKey, meta)
		c.Next()
	}
}

// SetCacheHit records whether the response was served from the grid cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ExtractMeta returns the metadata map stored on the context.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if meta, exists := c.Get(response.MetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta := ExtractMeta(c); meta != nil {
		return meta
	}
	meta := make(map[string]interface{})
	c.Set(response.MetaKey, meta)
	return meta
}
