package intake

import (
	"math"

	"roadAccident/pkg/e"
)

func ValidateLocation(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return e.ErrInvalidCoordinates
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return e.ErrInvalidCoordinates
	}
	return nil
}
