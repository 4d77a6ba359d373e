package main

import (
	"github.com/leakwatch/leakwatch/internal/cli"
	"github.com/leakwatch/leakwatch/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
