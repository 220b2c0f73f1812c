package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Brownie44l1/binfill-api/internal/model"
	"github.com/Brownie44l1/binfill-api/internal/preprocess"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// FormField is the multipart field carrying the photo.
const FormField = "photo"

type Analyzer interface {
	Analyze(data []byte) (*model.AnalyzeResponse, error)
	AnalyzeTensor(values []float64) (*model.AnalyzeResponse, error)
}

type Handler struct {
	analyzer Analyzer
}

func NewHandler(analyzer Analyzer) *Handler {
	return &Handler{
		analyzer: analyzer,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{Status: "healthy"})
}

func (h *Handler) Analyze(c *gin.Context) {
	logger := requestLogger(c)

	header, err := c.FormFile(FormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			abort(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("Upload exceeds %d bytes", maxErr.Limit))
			return
		}
		abort(c, http.StatusBadRequest, "No image file provided. Use 'photo' as the form field name")
		return
	}

	if ct := header.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		abort(c, http.StatusBadRequest, "File must be an image")
		return
	}

	file, err := header.Open()
	if err != nil {
		abort(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		abort(c, http.StatusBadRequest, "Failed to read uploaded file")
		return
	}

	logger.WithFields(log.Fields{"file": header.Filename, "bytes": len(data)}).Debug("[Analyze] Received upload")

	result, err := h.analyzer.Analyze(data)
	respond(c, logger, result, err)
}

func (h *Handler) AnalyzeTensor(c *gin.Context) {
	logger := requestLogger(c)

	var req model.TensorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abort(c, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Tensor) != preprocess.Len {
		abort(c, http.StatusBadRequest, fmt.Sprintf("Expected %d values, got %d", preprocess.Len, len(req.Tensor)))
		return
	}

	result, err := h.analyzer.AnalyzeTensor(req.Tensor)
	respond(c, logger, result, err)
}

func respond(c *gin.Context, logger *log.Entry, result *model.AnalyzeResponse, err error) {
	if err != nil {
		var unsupported *preprocess.UnsupportedImageError
		if errors.As(err, &unsupported) {
			abort(c, http.StatusBadRequest, "Invalid image format: "+unsupported.Reason)
			return
		}
		logger.WithError(err).Error("[Analyze] Prediction failed")
		abort(c, http.StatusInternalServerError, "Processing error: "+err.Error())
		return
	}

	logger.WithFields(log.Fields{
		"fill_percentage": result.FillPercentage,
		"confidence":      result.Confidence,
		"fire_detected":   result.FireDetected,
	}).Info("[Analyze] Estimated fill level")

	c.JSON(http.StatusOK, result)
}

func abort(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Detail: detail})
}
