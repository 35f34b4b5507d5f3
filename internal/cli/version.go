package cli

import (
	"runtime"

	"github.com/spf13/cobra"

	"github.com/shaiso/gateway-worker/internal/sysinfo"
)

// NewVersionCmd создаёт команду version.
func NewVersionCmd(version string, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and instance information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := map[string]string{
				"version":         version,
				"go":              runtime.Version(),
				"platform":        runtime.GOOS + "/" + runtime.GOARCH,
				"service_process": sysinfo.MachineID(),
			}

			outputFn().Print(
				[]string{"VERSION", "GO", "PLATFORM", "PROCESS"},
				[][]string{{info["version"], info["go"], info["platform"], info["service_process"]}},
				info,
			)
			return nil
		},
	}
}
