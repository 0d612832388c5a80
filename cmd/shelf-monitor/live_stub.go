//go:build !opencv

package main

import (
	"context"
	"errors"

	"github.com/banshee-data/shelf.report/internal/eventlog"
	"github.com/banshee-data/shelf.report/internal/metrics"
	"github.com/banshee-data/shelf.report/internal/pipeline"
	"github.com/banshee-data/shelf.report/internal/shelf"
)

func runLive(ctx context.Context, source string, mon *shelf.Monitor, logger *eventlog.Logger, resolver pipeline.Resolver, m *metrics.Metrics) (pipeline.Summary, error) {
	return pipeline.Summary{}, errors.New("camera capture needs OpenCV: rebuild with -tags opencv or use -replay")
}
