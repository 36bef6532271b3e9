package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/urfave/cli/v2"

	"github.com/thingprov/thingprov-go/pkg/secrets"
	"github.com/thingprov/thingprov-go/pkg/version"
)

var checkUpdateCommand = &cli.Command{
	Name:  "check-update",
	Usage: "check whether a newer firmware image exists for a device",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "device-version",
			Usage:    "firmware version reported by the device",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "image",
			Usage: "latest image name; lists the firmware bucket when empty",
		},
	},
	Action: runCheckUpdate,
}

var versionCommand = &cli.Command{
	Name:  "version",
	Usage: "print the client version",
	Action: func(cCtx *cli.Context) error {
		fmt.Fprintf(cCtx.App.Writer, "thingprov %s\n", version.Current)
		return nil
	},
}

// imageLister lists firmware image names. *secrets.S3Source implements it.
type imageLister interface {
	List(ctx context.Context) ([]string, error)
}

var _ imageLister = (*secrets.S3Source)(nil)

func runCheckUpdate(cCtx *cli.Context) error {
	logger := setupLogger(cCtx)

	image := cCtx.String("image")
	if image == "" {
		cfg, err := loadConfig(cCtx.String(configFlag.Name))
		if err != nil {
			return err
		}
		if cfg.Firmware.Bucket == "" {
			return errors.New("no firmware bucket configured: set firmware.bucket or pass --image")
		}
		bucket, err := secrets.NewS3Source(cfg.Firmware, logger)
		if err != nil {
			return err
		}
		image, err = latestImage(cCtx.Context, bucket)
		if err != nil {
			return err
		}
	}

	return reportUpdate(cCtx.App.Writer, image, cCtx.String("device-version"))
}

func latestImage(ctx context.Context, l imageLister) (string, error) {
	names, err := l.List(ctx)
	if err != nil {
		return "", fmt.Errorf("list firmware: %w", err)
	}
	image, ok := version.Latest(names)
	if !ok {
		return "", errors.New("no firmware images found")
	}
	return image, nil
}

func reportUpdate(w io.Writer, image, deviceVersion string) error {
	available, err := version.UpdateAvailable(image, deviceVersion)
	if err != nil {
		return err
	}
	latest, _ := version.FromImageName(image)
	if available {
		fmt.Fprintf(w, "update available: %s -> %s (%s)\n", deviceVersion, latest, image)
	} else {
		fmt.Fprintf(w, "up to date: %s (latest %s)\n", deviceVersion, latest)
	}
	return nil
}
