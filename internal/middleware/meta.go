package middleware

import "github.com/gin-gonic/gin"

const responseMetaKey = "response_meta"

// SetMeta records a key for the response envelope's meta block.
func SetMeta(c *gin.Context, key string, value interface{}) {
	meta := ResponseMeta(c)
	if meta == nil {
		meta = make(map[string]interface{})
		c.Set(responseMetaKey, meta)
	}
	meta[key] = value
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, "cache_hit", hit)
}

// ResponseMeta returns the metadata collected for the request, or nil.
func ResponseMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	return nil
}
