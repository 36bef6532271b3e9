// Command thingprov onboards devices over BLE.
//
// It finds a device by its advertised identity, proves possession of the
// device secret, lets the operator pick one of the Wi-Fi networks the device
// can see and transfers the Wi-Fi credentials and the cloud certificates.
//
// Usage:
//
//	thingprov [global flags] <command> [flags]
//
// Commands:
//
//	provision     Provision a device
//	import        Add factory deploy files to a device manifest
//	trace view    View a protocol trace
//	trace stats   Summarize a protocol trace
//	check-update  Check whether a firmware update is available
//	version       Print the client version
//
// Examples:
//
//	# Provision against the cloud registry, choosing the network interactively
//	thingprov --config thingprov.yaml provision --id id24A160E1B2C3
//
//	# Dry run against a simulated device
//	thingprov provision --simulate --id id24A160E1B2C3 --ssid thingprov-lab --password secret
//
//	# Inspect what happened
//	thingprov trace view --layer SESSION session.plog
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/thingprov/thingprov-go/pkg/provision"
	"github.com/thingprov/thingprov-go/pkg/version"
)

func newApp() *cli.App {
	return &cli.App{
		Name:    "thingprov",
		Usage:   "provision devices over BLE",
		Version: version.Current,
		Flags: []cli.Flag{
			configFlag,
			logJSONFlag,
			logDebugFlag,
			logUIDFlag,
		},
		Commands: []*cli.Command{
			provisionCommand,
			importCommand,
			traceCommand,
			checkUpdateCommand,
			versionCommand,
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(provision.CauseOf(err)))
	}
}
