package client

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Brownie44l1/binfill-api/internal/handlers"
	"github.com/Brownie44l1/binfill-api/internal/model"
	"github.com/Brownie44l1/binfill-api/internal/preprocess"
	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type halfModel struct{}

func (halfModel) Sample(_ preprocess.Tensor, runs int) ([]float64, error) {
	out := make([]float64, runs)
	for i := range out {
		out[i] = 0.25 + 0.5*float64(i%2)
	}
	return out, nil
}

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router, err := handlers.NewRouter(handlers.NewHandler(model.NewServer(halfModel{}, 10, true)), handlers.RouterOptions{})
	require.NoError(t, err)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func jpegImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, imaging.New(64, 48, color.NRGBA{R: 200, G: 180, B: 20, A: 255}), nil))
	return buf.Bytes()
}

func TestAnalyze(t *testing.T) {
	c := New(newService(t).URL+"/", 0)

	resp, err := c.Analyze(context.Background(), "/tmp/bins/bin-7.jpg", jpegImage(t))
	require.NoError(t, err)
	assert.Equal(t, 50.0, resp.FillPercentage)
	assert.Equal(t, 50.0, resp.Confidence)
	assert.False(t, resp.FireDetected)
}

func TestAnalyzeRejected(t *testing.T) {
	c := New(newService(t).URL, 0)

	_, err := c.Analyze(context.Background(), "notes.jpg", []byte("plain text"))
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Contains(t, se.Detail, "Invalid image format")
}

func TestHealth(t *testing.T) {
	c := New(newService(t).URL, 0)
	assert.NoError(t, c.Health(context.Background()))

	down := httptest.NewServer(http.NotFoundHandler())
	defer down.Close()
	assert.Error(t, New(down.URL, 0).Health(context.Background()))
}
