package crawler

import (
	"math"
	"strconv"
)

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

// AppKey is the document key used for a title's stored record.
func AppKey(appID int64) string {
	return strconv.FormatInt(appID, 10)
}

// FallbackAppName is the display name used for titles without one.
func FallbackAppName(appID int64) string {
	return "App " + AppKey(appID)
}
