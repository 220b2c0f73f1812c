package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

type RouterOptions struct {
	RateLimit      string // empty disables rate limiting
	MaxUploadBytes int64
}

func NewRouter(h *Handler, opts RouterOptions) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogging(), enableCORS())
	if opts.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = opts.MaxUploadBytes
	}

	router.GET("/health", h.Health)

	analyze := []gin.HandlerFunc{}
	if opts.RateLimit != "" {
		limit, err := rateLimit(opts.RateLimit)
		if err != nil {
			return nil, fmt.Errorf("invalid rate limit %q: %w", opts.RateLimit, err)
		}
		analyze = append(analyze, limit)
	}
	if opts.MaxUploadBytes > 0 {
		analyze = append(analyze, limitBody(opts.MaxUploadBytes))
	}
	router.POST("/analyze", append(analyze, h.Analyze)...)
	router.POST("/analyze/tensor", append(analyze[:len(analyze):len(analyze)], h.AnalyzeTensor)...)

	return router, nil
}
