//go:build opencv

package main

import (
	"context"

	"gocv.io/x/gocv"

	"github.com/banshee-data/shelf.report/internal/detection/yolo"
	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/metrics"
	"github.com/banshee-data/shelf.report/internal/monitoring"
	"github.com/banshee-data/shelf.report/internal/pipeline"
	"github.com/banshee-data/shelf.report/internal/shelf"
	"github.com/banshee-data/shelf.report/internal/video/camera"
)

func runLive(ctx context.Context, source string, mon *shelf.Monitor, logger *eventlog.Logger, resolver pipeline.Resolver, m *metrics.Metrics) (pipeline.Summary, error) {
	src, err := camera.Open(source)
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer src.Close()

	det, err := yolo.New(*modelPath, *modelConfig, *namesPath, yolo.DefaultOptions())
	if err != nil {
		return pipeline.Summary{}, err
	}
	defer det.Close()
	monitoring.Logf("[shelf-monitor] reading %s with model %s", src.Name(), *modelPath)

	r := pipeline.NewRunner[gocv.Mat](src, det, mon, logger)
	configure(r, resolver, m)
	return r.Run(ctx)
}
