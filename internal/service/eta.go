package service

import (
	"math"
)

const (
	ambulanceSpeedKmh = 50.0
	dispatchPrepMin   = 5
	minETAMinutes     = 5
	fallbackETAMin    = 15
)

// ETAEstimator approximates ambulance arrival from a fixed hospital position.
type ETAEstimator struct {
	hospitalLat float64
	hospitalLon float64
}

func NewETAEstimator(hospitalLat, hospitalLon float64) ETAEstimator {
	return ETAEstimator{hospitalLat: hospitalLat, hospitalLon: hospitalLon}
}

// Minutes is straight-line distance at 50 km/h with a traffic factor (1.2
// under 10 km, 1.1 beyond) plus dispatch preparation, never below 5.
func (e ETAEstimator) Minutes(lat, lon float64) int {
	dist := haversine(e.hospitalLat, e.hospitalLon, lat, lon)
	if math.IsNaN(dist) || math.IsInf(dist, 0) {
		return fallbackETAMin
	}

	traffic := 1.1
	if dist < 10 {
		traffic = 1.2
	}
	minutes := int(dist/ambulanceSpeedKmh*60*traffic) + dispatchPrepMin
	if minutes < minETAMinutes {
		return minETAMinutes
	}
	return minutes
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371.0

	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return R * c
}

func deg2rad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
