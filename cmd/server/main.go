package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/binfill-api/internal/config"
	"github.com/Brownie44l1/binfill-api/internal/handlers"
	"github.com/Brownie44l1/binfill-api/internal/logging"
	"github.com/Brownie44l1/binfill-api/internal/model"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// openModel is replaced in tests.
var openModel = loadModel

func loadModel(cfg *config.Config) (model.Model, error) {
	switch cfg.ModelBackend {
	case config.BackendNative:
		net, err := model.Load(cfg.ModelPath)
		if err != nil {
			return nil, err
		}
		return net, nil
	case config.BackendONNX:
		onnx, err := model.NewONNXModel(cfg.ModelPath, model.ONNXOptions{LibraryPath: cfg.ONNXLibraryPath})
		if err != nil {
			return nil, err
		}
		return onnx, nil
	default:
		return nil, errors.New("unknown MODEL_BACKEND " + cfg.ModelBackend)
	}
}

func main() {
	cfg := config.Load()
	if err := logging.Setup(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("[Main] Failed to set up logging: %v", err)
	}
	gin.SetMode(cfg.GinMode)

	if err := serve(cfg); err != nil {
		log.Fatalf("[Main] %v", err)
	}
	log.Info("[Main] Server stopped")
}

// serve runs until SIGINT/SIGTERM or a listener failure. The model is
// closed on every return path.
func serve(cfg *config.Config) error {
	log.Infof("[Main] Loading %s model from: %s", cfg.ModelBackend, cfg.ModelPath)

	m, err := openModel(cfg)
	if err != nil {
		return fmt.Errorf("failed to load model: %w", err)
	}

	modelServer := model.NewServer(m, cfg.Runs, cfg.NormalizeInput)
	defer modelServer.Close()

	handler := handlers.NewHandler(modelServer)
	router, err := handlers.NewRouter(handler, handlers.RouterOptions{
		RateLimit:      cfg.RateLimit,
		MaxUploadBytes: cfg.MaxUploadMB << 20,
	})
	if err != nil {
		return fmt.Errorf("failed to build router: %w", err)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Infof("[Main] Server starting on port %s", cfg.Port)
		log.Infof("[Main] Monte-Carlo runs: %d, normalized input: %t", modelServer.Runs(), modelServer.Normalize())
		log.Info("[Main] Endpoints:")
		log.Info("[Main]   GET  /health         - Health check")
		log.Info("[Main]   POST /analyze        - Estimate bin fill level from a photo")
		log.Info("[Main]   POST /analyze/tensor - Estimate from a preprocessed tensor")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}
	log.Info("[Main] Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("[Main] Forced shutdown: %v", err)
	}
	return nil
}
