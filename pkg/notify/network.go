package notify

// Quality is a coarse signal-strength bucket.
type Quality string

// Signal quality buckets.
const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityWeak      Quality = "weak"
)

// WifiNetwork is an access point reported by the device.
type WifiNetwork struct {
	SSID string `json:"ssid"`
	RSSI int    `json:"rssi"`
}

// Quality buckets the network's RSSI (dBm).
func (n WifiNetwork) Quality() Quality {
	switch {
	case n.RSSI > -65:
		return QualityExcellent
	case n.RSSI > -75:
		return QualityGood
	case n.RSSI > -85:
		return QualityFair
	default:
		return QualityWeak
	}
}

// Contains reports whether ssid is in networks.
func Contains(networks []WifiNetwork, ssid string) bool {
	for _, n := range networks {
		if n.SSID == ssid {
			return true
		}
	}
	return false
}
