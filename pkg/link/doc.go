// Package link manages the BLE link to a device being provisioned.
//
// The Manager sits on top of a radio Adapter and exposes the operations the
// provisioning flow needs: scanning for an advertised identity, connecting,
// checking the provisioning GATT layout, subscribing to notifications and
// writing frames with response. Adapters exist for real radios (package
// ble) and for an in-memory simulated device (package linktest).
//
// # GATT Layout
//
// The provisioning service is 0xFFFF. Its characteristics are:
//
//	0xFF01  proof of possession (write)
//	0xFF02  Wi-Fi credentials   (write)
//	0xFF03  root CA             (write)
//	0xFF04  device certificate  (write)
//	0xFF05  device private key  (write)
//	0xFF06  status              (notify)
package link
