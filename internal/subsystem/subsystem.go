// Package subsystem holds the process-wide interrupt endpoints of the
// computational subsystems that can run long computations inside a query.
//
// The set of endpoints is fixed at build time. The polygon-clipping engine
// (Wagyu) is only compiled in with the "wagyu" build tag.
package subsystem

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/randomizedcoder/geointerrupt/internal/cancel"
)

var (
	// GEOS is the geometry engine endpoint.
	GEOS = cancel.NewFlag("geos")

	// LWGEOM is the core geometry library endpoint. It is always the last
	// endpoint in broadcast order.
	LWGEOM = cancel.NewFlag("lwgeom")
)

// Endpoints returns the compiled-in endpoints in broadcast order.
func Endpoints() []cancel.Endpoint {
	eps := make([]cancel.Endpoint, 0, 3)
	eps = append(eps, GEOS)
	if wagyu != nil {
		eps = append(eps, wagyu)
	}
	return append(eps, LWGEOM)
}

// CallbackTargets returns the endpoints that accept an interrupt callback.
// Wagyu does not poll one.
func CallbackTargets() []*cancel.Flag {
	return []*cancel.Flag{GEOS, LWGEOM}
}

var reporter atomic.Pointer[logrus.Entry]

// InstallHandlers routes subsystem notices and errors to logger. It is the
// subsystems' own handler registration, run once at module load.
func InstallHandlers(logger *logrus.Entry) error {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	reporter.Store(logger.WithField("component", "subsystem"))
	return nil
}

// Notice reports an informational message from the named subsystem.
func Notice(name, format string, args ...any) {
	if l := reporter.Load(); l != nil {
		l.WithField("subsystem", name).Infof(format, args...)
	}
}

// Error reports an error raised by the named subsystem.
func Error(name string, err error) {
	if l := reporter.Load(); l != nil {
		l.WithField("subsystem", name).WithError(err).Error("subsystem error")
	}
}
