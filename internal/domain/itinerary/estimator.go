package itinerary

import (
	"fmt"
	"math"

	apperrors "github.com/yanqian/trip-planner/pkg/errors"
)

const (
	earthRadiusKM = 6371.0
	// MinutesPerKM is the coarse door-to-door pace used for every leg.
	MinutesPerKM = 2.0
)

// TravelTimeEstimator converts a pair of coordinates into travel minutes.
type TravelTimeEstimator interface {
	Estimate(from, to Coordinates) (float64, error)
}

// GreatCircleEstimator multiplies the haversine distance by a fixed minutes-per-km factor.
// It does not model roads or traffic.
type GreatCircleEstimator struct {
	MinutesPerKM float64
}

// NewGreatCircleEstimator returns the default estimator.
func NewGreatCircleEstimator() GreatCircleEstimator {
	return GreatCircleEstimator{MinutesPerKM: MinutesPerKM}
}

// Estimate implements TravelTimeEstimator.
func (e GreatCircleEstimator) Estimate(from, to Coordinates) (float64, error) {
	km, err := DistanceKM(from, to)
	if err != nil {
		return 0, err
	}
	factor := e.MinutesPerKM
	if factor <= 0 {
		factor = MinutesPerKM
	}
	return km * factor, nil
}

// DistanceKM is the great-circle distance between two coordinates.
func DistanceKM(from, to Coordinates) (float64, error) {
	if err := ValidateCoordinates(from); err != nil {
		return 0, err
	}
	if err := ValidateCoordinates(to); err != nil {
		return 0, err
	}
	lat1 := toRadians(from.Lat)
	lat2 := toRadians(to.Lat)
	dLat := lat2 - lat1
	dLon := toRadians(to.Lon - from.Lon)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c, nil
}

// ValidateCoordinates rejects NaN, infinite and out-of-range values.
func ValidateCoordinates(c Coordinates) error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lon) || math.IsInf(c.Lat, 0) || math.IsInf(c.Lon, 0) {
		return apperrors.Wrap(CodeInvalidCoordinate, fmt.Sprintf("coordinate (%v, %v) is not a number", c.Lat, c.Lon), nil)
	}
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return apperrors.Wrap(CodeInvalidCoordinate, fmt.Sprintf("coordinate (%v, %v) is out of range", c.Lat, c.Lon), nil)
	}
	return nil
}

// travelMinutes rounds an estimate to the whole minutes blocks and days record. Rounding keeps
// float noise such as 9.999999999999998 from losing a minute per leg.
func travelMinutes(est TravelTimeEstimator, from, to Coordinates) (int, error) {
	minutes, err := est.Estimate(from, to)
	if err != nil {
		return 0, err
	}
	return int(math.Round(minutes)), nil
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
