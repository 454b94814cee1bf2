package validators

import (
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/MKhiriev/go-fish-log/models"
)

// Field names accepted by Validate for field-level scoping.
const (
	FieldTripID  = "tripId"
	FieldID      = "id"
	FieldDate    = "date"
	FieldHours   = "hours"
	FieldSpecies = "species"
	FieldPhoto   = "photo"
)

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// FishLogValidator validates trips, weather logs and catches.
type FishLogValidator struct {
}

func NewFishLogValidator() Validator {
	return &FishLogValidator{}
}

func (v *FishLogValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.Trip:
		return v.validateTrip(ctx, value, fields...)
	case *models.Trip:
		return v.validateTrip(ctx, *value, fields...)

	case models.WeatherLog:
		return v.validateWeatherLog(ctx, value, fields...)
	case *models.WeatherLog:
		return v.validateWeatherLog(ctx, *value, fields...)

	case models.FishCaught:
		return v.validateFishCaught(ctx, value, fields...)
	case *models.FishCaught:
		return v.validateFishCaught(ctx, *value, fields...)

	default:
		return ErrUnsupportedType
	}
}

func (v *FishLogValidator) validateTrip(_ context.Context, trip models.Trip, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldDate, FieldHours}
	}

	for _, f := range fields {
		switch f {
		case FieldID:
			if trip.ID <= 0 {
				return invalid(FieldID, ErrInvalidTrip)
			}
		case FieldDate:
			if !IsValidDate(trip.Date) {
				return invalid(FieldDate, ErrInvalidDate)
			}
		case FieldHours:
			if trip.Hours < 0 || math.IsNaN(trip.Hours) || math.IsInf(trip.Hours, 0) {
				return invalid(FieldHours, ErrInvalidHours)
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *FishLogValidator) validateWeatherLog(_ context.Context, log models.WeatherLog, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldTripID}
	}

	for _, f := range fields {
		switch f {
		case FieldTripID:
			if log.TripID <= 0 {
				return invalid(FieldTripID, ErrInvalidTripID)
			}
		case FieldID:
			if !isChildID(log.ID, log.TripID) {
				return invalid(FieldID, ErrInvalidChildID)
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *FishLogValidator) validateFishCaught(_ context.Context, fish models.FishCaught, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldTripID, FieldSpecies, FieldPhoto}
	}

	for _, f := range fields {
		switch f {
		case FieldTripID:
			if fish.TripID <= 0 {
				return invalid(FieldTripID, ErrInvalidTripID)
			}
		case FieldSpecies:
			if strings.TrimSpace(fish.Species) == "" {
				return invalid(FieldSpecies, ErrEmptySpecies)
			}
		case FieldID:
			if !isChildID(fish.ID, fish.TripID) {
				return invalid(FieldID, ErrInvalidChildID)
			}
		case FieldPhoto:
			if fish.Photo != "" && fish.PhotoPath != "" {
				return invalid(FieldPhoto, ErrInvalidPhoto)
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

// IsValidDate reports whether s is a real calendar date written YYYY-MM-DD.
func IsValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func isChildID(id string, tripID int64) bool {
	prefix := strconv.FormatInt(tripID, 10) + "-"
	return strings.HasPrefix(id, prefix) && len(id) > len(prefix)
}
