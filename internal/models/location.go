// Package models holds the wire types exchanged between the device and the
// record store.
package models

import (
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/wetmap/internal/common"
)

type LocationType string

const (
	LocationWetland LocationType = "WETLAND"
	LocationDepot   LocationType = "DEPOT"
	LocationOther   LocationType = "OTHER"
)

// ParseLocationType normalizes s to a canonical category. Matching is
// case-insensitive and "STORAGE" is accepted as an alias of DEPOT.
func ParseLocationType(s string) (LocationType, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "WETLAND":
		return LocationWetland, nil
	case "DEPOT", "STORAGE":
		return LocationDepot, nil
	case "OTHER":
		return LocationOther, nil
	}
	return "", fmt.Errorf("%w: unknown location type %q", common.ErrValidation, s)
}

// UnmarshalText canonicalizes known aliases. Unknown values are kept
// upper-cased so one odd record does not fail a whole list; Validate
// rejects them on the way in.
func (t *LocationType) UnmarshalText(b []byte) error {
	if parsed, err := ParseLocationType(string(b)); err == nil {
		*t = parsed
		return nil
	}
	*t = LocationType(strings.ToUpper(string(b)))
	return nil
}

func (t LocationType) Valid() bool {
	switch t {
	case LocationWetland, LocationDepot, LocationOther:
		return true
	}
	return false
}

// Location is a geotagged marker.
type Location struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        LocationType `json:"type"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	City        string       `json:"city"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
	CreatedBy   string       `json:"createdBy"`
}

// LocationInput is a record without identity, as sent on create.
type LocationInput struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Type        LocationType `json:"type"`
	Latitude    float64      `json:"latitude"`
	Longitude   float64      `json:"longitude"`
	City        string       `json:"city"`
}

func (in LocationInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", common.ErrValidation)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown location type %q", common.ErrValidation, in.Type)
	}
	return validateCoordinates(in.Latitude, in.Longitude)
}

// Location builds a record from the input. Timestamps and identity are
// left to the caller.
func (in LocationInput) Location() Location {
	return Location{
		Title:       in.Title,
		Description: in.Description,
		Type:        in.Type,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		City:        in.City,
	}
}

// LocationPatch carries the fields of a partial update; nil means unchanged.
type LocationPatch struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Type        *LocationType `json:"type,omitempty"`
	Latitude    *float64      `json:"latitude,omitempty"`
	Longitude   *float64      `json:"longitude,omitempty"`
	City        *string       `json:"city,omitempty"`
}

func (p LocationPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Type == nil &&
		p.Latitude == nil && p.Longitude == nil && p.City == nil
}

func (p LocationPatch) Validate() error {
	if p.Empty() {
		return fmt.Errorf("%w: nothing to update", common.ErrValidation)
	}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title must not be empty", common.ErrValidation)
	}
	if p.Type != nil && !p.Type.Valid() {
		return fmt.Errorf("%w: unknown location type %q", common.ErrValidation, *p.Type)
	}
	if p.Latitude != nil {
		if err := validateLatitude(*p.Latitude); err != nil {
			return err
		}
	}
	if p.Longitude != nil {
		return validateLongitude(*p.Longitude)
	}
	return nil
}

// Apply merges the set fields into loc. Applying the same patch twice
// yields the same record as applying it once.
func (p LocationPatch) Apply(loc *Location) {
	if p.Title != nil {
		loc.Title = *p.Title
	}
	if p.Description != nil {
		loc.Description = *p.Description
	}
	if p.Type != nil {
		loc.Type = *p.Type
	}
	if p.Latitude != nil {
		loc.Latitude = *p.Latitude
	}
	if p.Longitude != nil {
		loc.Longitude = *p.Longitude
	}
	if p.City != nil {
		loc.City = *p.City
	}
}

// Merge returns a patch with the fields of both; next wins on overlap.
func (p LocationPatch) Merge(next LocationPatch) LocationPatch {
	out := p
	if next.Title != nil {
		out.Title = next.Title
	}
	if next.Description != nil {
		out.Description = next.Description
	}
	if next.Type != nil {
		out.Type = next.Type
	}
	if next.Latitude != nil {
		out.Latitude = next.Latitude
	}
	if next.Longitude != nil {
		out.Longitude = next.Longitude
	}
	if next.City != nil {
		out.City = next.City
	}
	return out
}

// LocationFilter narrows a listing. Zero values match everything.
type LocationFilter struct {
	Type LocationType
	City string
}

func (f LocationFilter) Matches(loc Location) bool {
	if f.Type != "" && loc.Type != f.Type {
		return false
	}
	if f.City != "" && !strings.EqualFold(strings.TrimSpace(loc.City), strings.TrimSpace(f.City)) {
		return false
	}
	return true
}

// Query encodes the filter as the ?type=&city= query string.
func (f LocationFilter) Query() url.Values {
	q := url.Values{}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.City != "" {
		q.Set("city", f.City)
	}
	return q
}

// FilterLocations returns the records of locs that match f, keeping order.
func FilterLocations(locs []Location, f LocationFilter) []Location {
	out := make([]Location, 0, len(locs))
	for _, l := range locs {
		if f.Matches(l) {
			out = append(out, l)
		}
	}
	return out
}

func validateCoordinates(lat, lon float64) error {
	if err := validateLatitude(lat); err != nil {
		return err
	}
	return validateLongitude(lon)
}

// NaN compares false against any bound, so it is rejected explicitly.
func validateLatitude(lat float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude out of range", common.ErrValidation)
	}
	return nil
}

func validateLongitude(lon float64) error {
	if math.IsNaN(lon) || lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude out of range", common.ErrValidation)
	}
	return nil
}
