package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/yishak-cs/shop-recommender/internal/services"
)

// Limits bounds the k and n a caller may ask for
type Limits struct {
	DefaultNeighbors int
	DefaultResults   int
	MaxNeighbors     int
	MaxResults       int
}

// DefaultLimits returns k=3, n=5 defaults with generous ceilings
func DefaultLimits() Limits {
	return Limits{
		DefaultNeighbors: 3,
		DefaultResults:   5,
		MaxNeighbors:     50,
		MaxResults:       100,
	}
}

// APIHandler handles all API requests
type APIHandler struct {
	recommendationService *services.RecommendationService
	limits                Limits
	logger                zerolog.Logger
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(recommendationService *services.RecommendationService, limits Limits, logger zerolog.Logger) *APIHandler {
	return &APIHandler{
		recommendationService: recommendationService,
		limits:                limits,
		logger:                logger.With().Str("component", "api").Logger(),
	}
}

// SetupRoutes configures all API routes
func (h *APIHandler) SetupRoutes(router *gin.Engine) {
	router.Use(RequestID(), RequestLogger(h.logger))

	api := router.Group("/api")
	{
		api.GET("/recommendations/knn/:userId", h.GetKNNRecommendations)
		api.GET("/users/:userId/neighbors", h.GetNeighbors)
		api.GET("/users/:userId/brand-vector", h.GetBrandVector)
		api.GET("/health", h.Health)
	}

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// knnQuery binds the optional k and n query parameters. Negative values are
// accepted and treated as zero by the engine.
type knnQuery struct {
	K *int `form:"k" binding:"omitempty,max=10000"`
	N *int `form:"n" binding:"omitempty,max=10000"`
}

// resolve applies defaults and the configured ceilings
func (q knnQuery) resolve(limits Limits) (k, n int, err error) {
	k, n = limits.DefaultNeighbors, limits.DefaultResults
	if q.K != nil {
		k = *q.K
	}
	if q.N != nil {
		n = *q.N
	}
	if limits.MaxNeighbors > 0 && k > limits.MaxNeighbors {
		return 0, 0, fmt.Errorf("k must be at most %d", limits.MaxNeighbors)
	}
	if limits.MaxResults > 0 && n > limits.MaxResults {
		return 0, 0, fmt.Errorf("n must be at most %d", limits.MaxResults)
	}
	return k, n, nil
}

// neighborsQuery binds the optional k query parameter of the neighbors route
type neighborsQuery struct {
	K *int `form:"k" binding:"omitempty,max=10000"`
}

func (q neighborsQuery) resolve(limits Limits) (int, error) {
	k := limits.DefaultNeighbors
	if q.K != nil {
		k = *q.K
	}
	if limits.MaxNeighbors > 0 && k > limits.MaxNeighbors {
		return 0, fmt.Errorf("k must be at most %d", limits.MaxNeighbors)
	}
	return k, nil
}

// GetKNNRecommendations handles requests for brand-similarity recommendations
func (h *APIHandler) GetKNNRecommendations(c *gin.Context) {
	userID := c.Param("userId")

	var query knnQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}
	k, n, err := query.resolve(h.limits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recommendations, err := h.recommendationService.GetKNNRecommendations(c.Request.Context(), userID, k, n)
	if err != nil {
		h.respondError(c, "Failed to get recommendations", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":         userID,
		"k":               k,
		"n":               n,
		"recommendations": recommendations,
		"strategy":        "KNN",
		"description":     "Products bought by shoppers with similar brand taste",
		"request_id":      c.GetString(requestIDKey),
	})
}

// GetNeighbors handles requests for a user's nearest neighbors
func (h *APIHandler) GetNeighbors(c *gin.Context) {
	userID := c.Param("userId")

	var query neighborsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters", "details": err.Error()})
		return
	}
	k, err := query.resolve(h.limits)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	neighbors, err := h.recommendationService.GetNeighbors(c.Request.Context(), userID, k)
	if err != nil {
		h.respondError(c, "Failed to get neighbors", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":    userID,
		"k":          k,
		"neighbors":  neighbors,
		"request_id": c.GetString(requestIDKey),
	})
}

// GetBrandVector handles requests for a user's per-brand purchase counts
func (h *APIHandler) GetBrandVector(c *gin.Context) {
	userID := c.Param("userId")

	vector, err := h.recommendationService.GetBrandVector(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, "Failed to get brand vector", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"brand_vector": vector,
		"request_id":   c.GetString(requestIDKey),
	})
}

// Health reports whether the snapshot source is reachable
func (h *APIHandler) Health(c *gin.Context) {
	source := h.recommendationService.SourceName()
	if err := h.recommendationService.Health(c.Request.Context()); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "source": source, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "source": source})
}

// respondError maps service errors to status codes
func (h *APIHandler) respondError(c *gin.Context, message string, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, services.ErrSourceUnavailable) {
		status = http.StatusServiceUnavailable
	}

	h.logger.Error().
		Err(err).
		Str("request_id", c.GetString(requestIDKey)).
		Str("path", c.FullPath()).
		Msg(message)

	c.JSON(status, gin.H{"error": message, "request_id": c.GetString(requestIDKey)})
}
