package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/geointerrupt/internal/host"
	"github.com/randomizedcoder/geointerrupt/internal/subsystem"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build features",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "geointerrupt %s (%s %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "  wagyu:              %t\n", subsystem.WagyuEnabled)
			fmt.Fprintf(out, "  endpoints:          %d\n", len(subsystem.Endpoints()))
			fmt.Fprintf(out, "  deferred delivery:  %t\n", host.DeferredDelivery)
			return nil
		},
	}
}
