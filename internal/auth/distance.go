package auth

import "math"

const earthRadiusKM = 6371.0

// HaversineKM calculates the distance in kilometers between two
// geographic coordinates.
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKM * c
}

// NewLocation reports whether curr is farther than thresholdKM from prev.
// Locations without coordinates are compared by city and country instead.
func NewLocation(prev, curr LocationInfo, thresholdKM float64) bool {
	if (prev.Latitude == 0 && prev.Longitude == 0) ||
		(curr.Latitude == 0 && curr.Longitude == 0) {
		return prev.City != curr.City || prev.Country != curr.Country
	}

	distance := HaversineKM(prev.Latitude, prev.Longitude, curr.Latitude, curr.Longitude)
	return distance > thresholdKM
}
