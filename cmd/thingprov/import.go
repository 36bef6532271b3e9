package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/thingprov/thingprov-go/pkg/registry"
)

var importCommand = &cli.Command{
	Name:      "import",
	Usage:     "add factory deploy files to a device manifest",
	ArgsUsage: "<deploy-file>...",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "manifest",
			Usage:    "manifest file; created when missing",
			Required: true,
		},
	},
	Action: func(cCtx *cli.Context) error {
		logger := setupLogger(cCtx)
		if cCtx.NArg() == 0 {
			return errors.New("no deploy files given")
		}

		reg, err := openOrCreateManifest(cCtx.String("manifest"))
		if err != nil {
			return err
		}

		for _, path := range cCtx.Args().Slice() {
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			entry, err := registry.ParseDeployFile(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := reg.Add(entry); err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logger.Info("imported device", "id", entry.ID, "type", entry.Type)
			fmt.Fprintf(cCtx.App.Writer, "imported %s\n", entry.ID)
		}
		return nil
	},
}

// openOrCreateManifest opens the manifest at path, writing an empty one
// first when it does not exist.
func openOrCreateManifest(path string) (*registry.FileRegistry, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if err := os.WriteFile(path, []byte("devices: []\n"), 0o600); err != nil {
			return nil, err
		}
	}
	return registry.OpenFileRegistry(path)
}
