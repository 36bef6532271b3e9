package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/thingprov/thingprov-go/pkg/link"
	"github.com/thingprov/thingprov-go/pkg/link/ble"
	"github.com/thingprov/thingprov-go/pkg/provision"
	"github.com/thingprov/thingprov-go/pkg/registry"
	"github.com/thingprov/thingprov-go/pkg/secrets"
)

var provisionCommand = &cli.Command{
	Name:  "provision",
	Usage: "provision a device over BLE",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Usage:    "advertised device identity",
			Required: true,
		},
		&cli.BoolFlag{
			Name:  "simulate",
			Usage: "provision an in-memory device instead of using the radio",
		},
		&cli.StringFlag{
			Name:  "ssid",
			Usage: "network to provision; prompts when empty",
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "password for --ssid",
			EnvVars: []string{"THINGPROV_WIFI_PASSWORD"},
		},
		&cli.StringFlag{
			Name:  "protocol-log",
			Usage: "append the protocol trace to this file",
		},
		&cli.StringFlag{
			Name:    "registry-token",
			Usage:   "bearer token for the registry endpoint",
			EnvVars: []string{"THINGPROV_REGISTRY_TOKEN"},
		},
	},
	Action: runProvision,
}

// environment is what a session runs against.
type environment struct {
	adapter  link.Adapter
	registry registry.Registry
	secrets  secrets.Source
}

func runProvision(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)

	cfg, err := loadConfig(cCtx.String(configFlag.Name))
	if err != nil {
		return err
	}
	if tok := cCtx.String("registry-token"); tok != "" {
		cfg.Registry.Token = tok
	}

	rawID := cCtx.String("id")
	id, err := cfg.Provision.Identity.Parse(rawID)
	if err != nil {
		return err
	}

	var env environment
	if cCtx.Bool("simulate") {
		sim, err := newSimulation(id, cfg.Provision.Documents, "")
		if err != nil {
			return fmt.Errorf("simulation: %w", err)
		}
		env = environment{adapter: sim.device, registry: sim.registry, secrets: sim.secrets}
		logger.Info("using simulated device", "id", id)
	} else {
		reg, err := buildRegistry(cfg.Registry, logger)
		if err != nil {
			return err
		}
		src, err := buildSecrets(cfg.Secrets, logger)
		if err != nil {
			return err
		}
		env = environment{adapter: ble.New(nil), registry: reg, secrets: src}
	}

	tracePath := cCtx.String("protocol-log")
	if tracePath == "" {
		tracePath = cfg.ProtocolLog
	}
	protoLogger, closer, err := buildProtocolLogger(tracePath, cCtx.Bool(logDebugFlag.Name), logger)
	if err != nil {
		return err
	}
	defer closer.Close()

	out := cCtx.App.Writer
	var choose provision.Chooser
	if ssid := cCtx.String("ssid"); ssid != "" {
		choose = fixedChooser(ssid, cCtx.String("password"), out)
	} else {
		rl, err := newPrompter()
		if err != nil {
			return err
		}
		defer rl.Close()
		out = rl.Stdout()
		choose = promptChooser(rl, out)
	}

	ctx, stop := signal.NotifyContext(cCtx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := link.NewManager(env.adapter, link.WithLogger(logger))
	orch := provision.New(cfg.Provision, mgr, env.registry, env.secrets,
		provision.WithLogger(logger),
		provision.WithProtocolLogger(protoLogger),
		provision.WithObserver(printEvents(out)),
	)

	res, err := orch.Provision(ctx, rawID, choose)
	printResult(out, res)
	if err != nil {
		return fmt.Errorf("provisioning failed (%s): %w", res.Cause, err)
	}
	return nil
}

// exitCode maps a failure cause to a process exit code. Errors that did not
// come from a session map to the code of CauseUnknown.
func exitCode(c provision.Cause) int {
	switch c {
	case provision.CauseNone:
		return 0
	case provision.CauseAbandoned:
		return 130
	default:
		return 1 + int(c)
	}
}

