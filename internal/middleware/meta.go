package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	metaKey      = "response_meta"
	startedAtKey = "response_started_at"
)

// WithResponseMeta starts the processing clock and an empty meta map for the request.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(startedAtKey, time.Now())
		c.Set(metaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	Meta(c)["cache_hit"] = hit
}

// Meta returns the request's meta map with processing_time_ms refreshed. Without
// WithResponseMeta in the chain the elapsed time reads as zero.
func Meta(c *gin.Context) map[string]interface{} {
	var meta map[string]interface{}
	if value, ok := c.Get(metaKey); ok {
		meta, _ = value.(map[string]interface{})
	}
	if meta == nil {
		meta = map[string]interface{}{}
		c.Set(metaKey, meta)
	}

	var elapsed int64
	if value, ok := c.Get(startedAtKey); ok {
		if startedAt, ok := value.(time.Time); ok {
			elapsed = time.Since(startedAt).Milliseconds()
		}
	}
	meta["processing_time_ms"] = elapsed
	return meta
}
