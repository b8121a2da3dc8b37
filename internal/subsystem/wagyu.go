//go:build wagyu

package subsystem

import "github.com/randomizedcoder/geointerrupt/internal/cancel"

// WagyuEnabled reports whether the polygon-clipping engine is compiled in.
const WagyuEnabled = true

// Wagyu is the polygon-clipping engine endpoint.
var Wagyu = cancel.NewFlag("wagyu")

var wagyu cancel.Endpoint = Wagyu
