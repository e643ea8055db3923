package auth

import (
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

var (
	// ErrInvalidIP is returned when a location lookup is attempted on a
	// string that is not an IP address.
	ErrInvalidIP = errors.New("auth: invalid IP address")
)

// GeoIP resolves IP addresses to locations using a MaxMind GeoLite2-City
// database. It is optional; a nil *GeoIP disables location capture.
type GeoIP struct {
	db *geoip2.Reader
}

// NewGeoIP opens the MaxMind database at dbPath.
func NewGeoIP(dbPath string) (*GeoIP, error) {
	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("auth: failed to open GeoIP database: %w", err)
	}
	return &GeoIP{db: db}, nil
}

// Lookup returns location information for an IP address.
func (g *GeoIP) Lookup(ip string) (LocationInfo, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return LocationInfo{}, fmt.Errorf("%w: %s", ErrInvalidIP, ip)
	}

	record, err := g.db.City(parsed)
	if err != nil {
		return LocationInfo{}, fmt.Errorf("auth: GeoIP lookup failed: %w", err)
	}

	return LocationInfo{
		IP:        ip,
		City:      localizedName(record.City.Names),
		Country:   localizedName(record.Country.Names),
		Latitude:  record.Location.Latitude,
		Longitude: record.Location.Longitude,
	}, nil
}

// LookupWithFallback attempts geolocation, returning a partial result with
// just the IP when the lookup fails. Safe on a nil receiver.
func (g *GeoIP) LookupWithFallback(ip string) LocationInfo {
	if g == nil || g.db == nil {
		return LocationInfo{IP: ip}
	}
	loc, err := g.Lookup(ip)
	if err != nil {
		return LocationInfo{IP: ip}
	}
	return loc
}

// Close closes the underlying database.
func (g *GeoIP) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// localizedName prefers the English name, falling back to any available
// localization.
func localizedName(names map[string]string) string {
	if name, ok := names["en"]; ok {
		return name
	}
	for _, name := range names {
		return name
	}
	return ""
}
