package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/thingprov/thingprov-go/pkg/notify"
	"github.com/thingprov/thingprov-go/pkg/provision"
)

// errNoChoice is returned when the operator leaves the network prompt.
var errNoChoice = errors.New("no network chosen")

// prompter is the part of *readline.Instance the chooser uses.
type prompter interface {
	Readline() (string, error)
	ReadPassword(prompt string) ([]byte, error)
	SetPrompt(prompt string)
}

var _ prompter = (*readline.Instance)(nil)

func newPrompter() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "network> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return rl, nil
}

// printNetworks writes the numbered network list.
func printNetworks(w io.Writer, networks []notify.WifiNetwork) {
	fmt.Fprintln(w, "Networks seen by the device:")
	for i, n := range networks {
		fmt.Fprintf(w, "  %2d) %-32s %4d dBm  %s\n", i+1, n.SSID, n.RSSI, n.Quality())
	}
}

// promptChooser asks the operator for a network, by number or SSID, and
// its password. An interrupt or EOF abandons the session.
func promptChooser(p prompter, w io.Writer) provision.Chooser {
	return func(ctx context.Context, networks []notify.WifiNetwork) (string, string, error) {
		printNetworks(w, networks)

		var ssid string
		for ssid == "" {
			if err := ctx.Err(); err != nil {
				return "", "", err
			}
			p.SetPrompt("network> ")
			line, err := p.Readline()
			if err != nil {
				return "", "", errNoChoice
			}
			ssid = pickNetwork(networks, strings.TrimSpace(line))
			if ssid == "" && strings.TrimSpace(line) != "" {
				fmt.Fprintln(w, "Unknown network, enter a number or an SSID from the list.")
			}
		}

		pw, err := p.ReadPassword(fmt.Sprintf("password for %s: ", ssid))
		if err != nil {
			return "", "", errNoChoice
		}
		return ssid, string(pw), nil
	}
}

// pickNetwork resolves a list number or an SSID. It returns "" when the
// input matches nothing.
func pickNetwork(networks []notify.WifiNetwork, input string) string {
	if input == "" {
		return ""
	}
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(networks) {
		return networks[n-1].SSID
	}
	if notify.Contains(networks, input) {
		return input
	}
	return ""
}

// fixedChooser picks ssid without asking.
func fixedChooser(ssid, password string, w io.Writer) provision.Chooser {
	return func(_ context.Context, networks []notify.WifiNetwork) (string, string, error) {
		printNetworks(w, networks)
		fmt.Fprintf(w, "Using network %s\n", ssid)
		return ssid, password, nil
	}
}

// printEvents reports session progress on w.
func printEvents(w io.Writer) provision.Observer {
	return func(e provision.Event) {
		switch e.Type {
		case provision.EventPhaseChanged:
			fmt.Fprintf(w, "[%s] %s\n", e.DeviceID, e.Phase)
		case provision.EventNetworkFound:
			fmt.Fprintf(w, "[%s] found %s (%d dBm)\n", e.DeviceID, e.Network.SSID, e.Network.RSSI)
		case provision.EventCompleted:
			fmt.Fprintf(w, "[%s] provisioned\n", e.DeviceID)
		case provision.EventFailed:
			fmt.Fprintf(w, "[%s] failed: %v\n", e.DeviceID, e.Error)
		}
	}
}

// printResult writes the session summary.
func printResult(w io.Writer, res *provision.Result) {
	if res == nil {
		return
	}
	fmt.Fprintln(w)
	if res.SessionID != "" {
		fmt.Fprintf(w, "Session:  %s\n", res.SessionID)
	}
	if res.DeviceID != "" {
		fmt.Fprintf(w, "Device:   %s", res.DeviceID)
		if res.Address != "" {
			fmt.Fprintf(w, " (%s)", res.Address)
		}
		fmt.Fprintln(w)
	}
	if res.Network != "" {
		fmt.Fprintf(w, "Network:  %s\n", res.Network)
	}
	fmt.Fprintf(w, "Phase:    %s\n", res.Phase)
	fmt.Fprintf(w, "Records:  %d\n", res.Records)
	if res.Duration > 0 {
		fmt.Fprintf(w, "Duration: %s\n", res.Duration.Round(time.Millisecond))
	}
	if res.Err != nil {
		fmt.Fprintf(w, "Cause:    %s\n", res.Cause)
	}
}
