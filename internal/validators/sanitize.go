package validators

import (
	"strings"

	"github.com/MKhiriev/go-fish-log/models"
)

var markupStripper = strings.NewReplacer("<", "", ">", "", `"`, "", "'", "", "&", "")

// Sanitize strips the characters < > " ' & and surrounding whitespace.
func Sanitize(s string) string {
	return strings.TrimSpace(markupStripper.Replace(s))
}

// SanitizeTrip returns trip with every free-text field sanitized.
func SanitizeTrip(trip models.Trip) models.Trip {
	trip.Water = Sanitize(trip.Water)
	trip.Location = Sanitize(trip.Location)
	trip.Companions = Sanitize(trip.Companions)
	trip.Notes = Sanitize(trip.Notes)
	return trip
}

// SanitizeWeatherLog returns log with every free-text field sanitized.
func SanitizeWeatherLog(log models.WeatherLog) models.WeatherLog {
	log.TimeOfDay = Sanitize(log.TimeOfDay)
	log.Sky = Sanitize(log.Sky)
	log.WindCondition = Sanitize(log.WindCondition)
	log.WindDirection = Sanitize(log.WindDirection)
	log.WaterTemp = Sanitize(log.WaterTemp)
	log.AirTemp = Sanitize(log.AirTemp)
	return log
}

// SanitizeFishCaught returns fish with every free-text field sanitized. The
// gear slice is copied, never modified in place.
func SanitizeFishCaught(fish models.FishCaught) models.FishCaught {
	fish.Species = Sanitize(fish.Species)
	fish.Length = Sanitize(fish.Length)
	fish.Weight = Sanitize(fish.Weight)
	fish.Time = Sanitize(fish.Time)
	fish.Details = Sanitize(fish.Details)
	if fish.Gear != nil {
		gear := make([]string, len(fish.Gear))
		for i, g := range fish.Gear {
			gear[i] = Sanitize(g)
		}
		fish.Gear = gear
	}
	return fish
}
