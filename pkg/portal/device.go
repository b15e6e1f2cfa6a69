package portal

import (
	"strings"

	"github.com/parapet/portal/pkg/session"
)

// Device is the coarse client classification themes key off.
type Device string

const (
	DeviceDesktop Device = "desktop"
	DeviceTablet  Device = "tablet"
	DevicePhone   Device = "phone"
)

// ClassifyDevice maps a User-Agent header to a device class. The
// classification is heuristic; unknown agents count as desktop.
func ClassifyDevice(userAgent string) Device {
	ua := strings.ToLower(userAgent)
	switch {
	case strings.Contains(ua, "ipad") || strings.Contains(ua, "tablet"):
		return DeviceTablet
	case strings.Contains(ua, "mobi") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone"):
		return DevicePhone
	default:
		return DeviceDesktop
	}
}

// sessionDevice returns the session-cached device class, classifying and
// caching on first sight. Classification runs once per session, not per
// request.
func sessionDevice(sess *session.Session, userAgent string) Device {
	if cached := sess.Get(session.KeyDevice); cached != "" {
		return Device(cached)
	}
	device := ClassifyDevice(userAgent)
	sess.Set(session.KeyDevice, string(device))
	return device
}
