package main

import (
	"fmt"

	"github.com/banshee-data/shelf.report/internal/monitoring"
)

// captureLogs redirects monitoring.Logf into lines until restore is called.
func captureLogs(lines *[]string) (restore func()) {
	prev := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		*lines = append(*lines, fmt.Sprintf(format, v...))
	})
	return func() { monitoring.SetLogger(prev) }
}
