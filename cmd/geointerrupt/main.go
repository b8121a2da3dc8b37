package main

import (
	"github.com/randomizedcoder/geointerrupt/internal/cli"
	"github.com/randomizedcoder/geointerrupt/internal/metrics"
	"github.com/randomizedcoder/geointerrupt/internal/subsystem"
)

func main() {
	metrics.EmitBuildInfo(subsystem.WagyuEnabled)
	cli.Execute()
}
