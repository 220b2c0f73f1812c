package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Brownie44l1/binfill-api/internal/client"
	"github.com/Brownie44l1/binfill-api/internal/logging"
	"github.com/Brownie44l1/binfill-api/internal/model"
	"github.com/Brownie44l1/binfill-api/internal/preprocess"
	log "github.com/sirupsen/logrus"
)

func main() {
	runs := flag.Int("runs", model.DefaultRuns, "Number of stochastic passes")
	modelPath := flag.String("model", "bin_fill_model.bin", "Parameter artifact written by train")
	normalize := flag.Bool("normalize", false, "Standardize the image with ImageNet statistics")
	remote := flag.String("remote", "", "Base URL of a running service; overrides -model")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <image>\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(2)
	}
	if err := logging.Setup("warn", ""); err != nil {
		log.Fatal(err)
	}

	imagePath := flag.Arg(0)
	data, err := os.ReadFile(imagePath)
	if err != nil {
		log.Fatalf("[Predict] Cannot read image: %v", err)
	}

	var fill, confidence float64
	if *remote != "" {
		resp, err := client.New(*remote, 0).Analyze(context.Background(), imagePath, data)
		if err != nil {
			log.Fatalf("[Predict] %v", err)
		}
		fill, confidence = resp.FillPercentage, resp.Confidence
	} else {
		net, err := model.Load(*modelPath)
		if err != nil {
			log.Fatalf("[Predict] %v", err)
		}
		tensor, err := preprocess.PreprocessBytes(data, *normalize)
		if err != nil {
			log.Fatalf("[Predict] %v", err)
		}
		est, err := model.NewEstimator(net, *runs).Estimate(tensor)
		if err != nil {
			log.Fatalf("[Predict] %v", err)
		}
		resp := model.NewAnalyzeResponse(est)
		fill, confidence = resp.FillPercentage, resp.Confidence
	}

	fmt.Printf("Fill: %.2f%% | Confidence: %.2f%%\n", fill, confidence)
}
