//go:build !wagyu

package subsystem

import "github.com/randomizedcoder/geointerrupt/internal/cancel"

// WagyuEnabled reports whether the polygon-clipping engine is compiled in.
const WagyuEnabled = false

var wagyu cancel.Endpoint
