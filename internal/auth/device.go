package auth

import (
	"net"
	"net/http"
	"strings"

	"github.com/mssola/useragent"
)

// CaptureMeta builds the metadata stamped onto a session issued for this
// request: parsed device information plus, when a GeoIP reader is
// configured, the resolved location. geo may be nil.
func CaptureMeta(r *http.Request, geo *GeoIP) SessionMeta {
	device := captureDevice(r)

	meta := SessionMeta{Device: device, Location: LocationInfo{IP: device.IP}}
	if geo != nil {
		meta.Location = geo.LookupWithFallback(device.IP)
	}
	return meta
}

// captureDevice extracts device information from the request headers.
func captureDevice(r *http.Request) DeviceInfo {
	ua := r.UserAgent()
	parsed := useragent.New(ua)

	browser, version := parsed.Browser()
	if version != "" {
		browser += " " + version
	}

	osInfo := parsed.OSInfo()
	os := osInfo.Name
	if osInfo.Version != "" {
		os += " " + osInfo.Version
	}

	deviceType := "desktop"
	switch {
	case parsed.Bot():
		deviceType = "bot"
	case parsed.Mobile():
		deviceType = "mobile"
	case isTablet(ua):
		deviceType = "tablet"
	}

	return DeviceInfo{
		IP:         clientIP(r),
		UserAgent:  ua,
		Browser:    browser,
		OS:         os,
		DeviceType: deviceType,
	}
}

// clientIP returns the client address, preferring proxy headers over
// RemoteAddr. Only syntactically valid addresses are accepted from
// headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// comma-separated list, first entry is the client
		first := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0])
		if net.ParseIP(first) != nil {
			return first
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		if net.ParseIP(xri) != nil {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RemoteAddr might not carry a port
		return r.RemoteAddr
	}
	return host
}

func isTablet(ua string) bool {
	ua = strings.ToLower(ua)
	for _, keyword := range []string{"ipad", "tablet", "playbook", "silk"} {
		if strings.Contains(ua, keyword) {
			return true
		}
	}
	return false
}
