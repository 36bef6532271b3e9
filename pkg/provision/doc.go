// Package provision drives a device through onboarding over BLE.
//
// An Orchestrator runs one Session at a time. A session finds the device by
// its advertised identity, proves possession of the device secret, collects
// the Wi-Fi networks the device can see, and then transfers the Wi-Fi
// credentials followed by the root CA, the device certificate and the device
// private key. Every record is enveloped with the device's pre-shared key and
// the next record is only written once the device has acknowledged the
// previous one.
//
// Phases advance as
//
//	Idle -> Scanning -> PopExchange -> WifiCollecting -> NetworkChosen -> Transferring -> Done
//
// and any error after Idle moves the session to Failed. Failed and Done are
// terminal: a new attempt starts over with a new session.
//
// Interactive callers drive a Session step by step:
//
//	s, err := orch.Start(ctx, "id24A160E1B2C3")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	networks, err := s.Networks(ctx)
//	...
//	if err := s.Choose(ssid, password); err != nil {
//		return err
//	}
//	return s.Transfer(ctx)
//
// Provision wraps the same flow around a Chooser callback.
package provision
