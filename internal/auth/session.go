package auth

import "time"

// DeviceInfo is device information captured from the login request.
type DeviceInfo struct {
	IP         string `json:"ip"`
	UserAgent  string `json:"user_agent"`
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"` // mobile, desktop, tablet, bot
}

// LocationInfo is the geographic location resolved from the login IP.
// Only the IP is set when no GeoIP database is configured.
type LocationInfo struct {
	IP        string  `json:"ip"`
	City      string  `json:"city"`
	Country   string  `json:"country"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SessionMeta is the request metadata stamped onto a session at issuance.
// It never influences authentication decisions.
type SessionMeta struct {
	Device   DeviceInfo
	Location LocationInfo
}

// Session binds a bearer token to a user id and its validity window.
type Session struct {
	Token     string
	UserID    int64
	Device    DeviceInfo
	Location  LocationInfo
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Active reports whether the session is still inside its validity window
// at the given instant.
func (s *Session) Active(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}
