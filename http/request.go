package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"

	"swissrelocator/cities"
	"swissrelocator/ml"
)

// Accepted ranges for prediction inputs.
const (
	minSurface   = 5.0
	maxSurface   = 10000.0
	minLatitude  = 45.5
	maxLatitude  = 48.0
	minLongitude = 5.5
	maxLongitude = 10.5
	minRooms     = 1.0
	maxRooms     = 50.0
	minFloor     = -1
	maxFloor     = 50
)

// FieldError is one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// errMalformedBody marks a body that is not a JSON object.
var errMalformedBody = errors.New("malformed request body")

// predictPayload is the wire form of a prediction request. Pointers tell
// an absent field from a zero value.
type predictPayload struct {
	City         *string  `json:"city"`
	Surface      *float64 `json:"surface"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Rooms        *float64 `json:"rooms"`
	Pieces       *float64 `json:"pieces"`
	Floor        *float64 `json:"floor"`
	Etage        *float64 `json:"etage"`
	HasParking   *bool    `json:"has_parking"`
	HasLift      *bool    `json:"has_lift"`
	PropertyType *string  `json:"property_type"`
}

// decodePayload reads exactly one JSON object. Fields are decoded one by
// one so that every field of the wrong type is reported, not just the
// first; those come back in the ValidationError, which toRequest extends.
// Anything unparsable, including trailing data, is errMalformedBody.
func decodePayload(r io.Reader) (*predictPayload, *ValidationError, error) {
	dec := json.NewDecoder(r)

	var raw map[string]json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, bodyError(err)
	}
	if raw == nil {
		return nil, nil, fmt.Errorf("%w: null body", errMalformedBody)
	}
	if _, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = errors.New("trailing data after JSON object")
		}
		return nil, nil, bodyError(err)
	}

	v := &ValidationError{}
	p := &predictPayload{
		City:         decodeField[string](raw, "city", "string", v),
		Surface:      decodeField[float64](raw, "surface", "number", v),
		Latitude:     decodeField[float64](raw, "latitude", "number", v),
		Longitude:    decodeField[float64](raw, "longitude", "number", v),
		Rooms:        decodeField[float64](raw, "rooms", "number", v),
		Pieces:       decodeField[float64](raw, "pieces", "number", v),
		Floor:        decodeField[float64](raw, "floor", "number", v),
		Etage:        decodeField[float64](raw, "etage", "number", v),
		HasParking:   decodeField[bool](raw, "has_parking", "boolean", v),
		HasLift:      decodeField[bool](raw, "has_lift", "boolean", v),
		PropertyType: decodeField[string](raw, "property_type", "string", v),
	}
	return p, v, nil
}

// decodeField decodes raw[name]. A value of the wrong type is recorded in v
// and treated as absent; JSON null is absent too.
func decodeField[T any](raw map[string]json.RawMessage, name, kind string, v *ValidationError) *T {
	msg, ok := raw[name]
	if !ok {
		return nil
	}
	var out *T
	if err := json.Unmarshal(msg, &out); err != nil {
		v.add(name, "must be of type %s", kind)
		return nil
	}
	return out
}

func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return err
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}

// toRequest validates the payload and resolves its city. v holds the type
// errors from decoding, or is nil; the result reports them and every range
// error together.
func (p *predictPayload) toRequest(resolver *cities.Resolver, v *ValidationError) (ml.RentRequest, error) {
	var req ml.RentRequest
	if v == nil {
		v = &ValidationError{}
	}

	switch {
	case p.City == nil || strings.TrimSpace(*p.City) == "":
		if !v.has("city") {
			v.add("city", "field required")
		}
	default:
		city, ok := resolver.Resolve(*p.City)
		if !ok {
			v.add("city", "unsupported city %q, supported: %s", *p.City, strings.Join(cities.Names(), ", "))
		}
		req.City = city
	}

	switch {
	case p.Surface == nil:
		if !v.has("surface") {
			v.add("surface", "field required")
		}
	case !finite(*p.Surface) || *p.Surface <= minSurface || *p.Surface >= maxSurface:
		v.add("surface", "must be greater than %g and less than %g", minSurface, maxSurface)
	default:
		req.Surface = *p.Surface
	}

	if p.Latitude != nil {
		if !inRange(*p.Latitude, minLatitude, maxLatitude) {
			v.add("latitude", "must be between %g and %g", minLatitude, maxLatitude)
		}
		req.Latitude = p.Latitude
	}
	if p.Longitude != nil {
		if !inRange(*p.Longitude, minLongitude, maxLongitude) {
			v.add("longitude", "must be between %g and %g", minLongitude, maxLongitude)
		}
		req.Longitude = p.Longitude
	}

	if rooms, field := firstSet(p.Rooms, p.Pieces, "rooms", "pieces"); rooms != nil {
		if !inRange(*rooms, minRooms, maxRooms) {
			v.add(field, "must be between %g and %g", minRooms, maxRooms)
		}
		req.Rooms = rooms
	}

	if floor, field := firstSet(p.Floor, p.Etage, "floor", "etage"); floor != nil {
		switch {
		case !finite(*floor) || *floor != math.Trunc(*floor):
			v.add(field, "must be an integer")
		case *floor < minFloor || *floor > maxFloor:
			v.add(field, "must be between %d and %d", minFloor, maxFloor)
		default:
			f := int(*floor)
			req.Floor = &f
		}
	}

	req.HasParking = p.HasParking != nil && *p.HasParking
	req.HasLift = p.HasLift != nil && *p.HasLift

	req.PropertyType = ml.PropertyOffice
	if p.PropertyType != nil {
		switch strings.ToLower(strings.TrimSpace(*p.PropertyType)) {
		case "office", "bureau":
			req.PropertyType = ml.PropertyOffice
		case "commercial":
			req.PropertyType = ml.PropertyCommercial
		default:
			v.add("property_type", "must be one of office, commercial")
		}
	}

	if len(v.Fields) > 0 {
		return ml.RentRequest{}, v
	}
	return req, nil
}

func firstSet(primary, alias *float64, primaryName, aliasName string) (*float64, string) {
	if primary != nil {
		return primary, primaryName
	}
	return alias, aliasName
}

func inRange(x, lo, hi float64) bool {
	return finite(x) && x >= lo && x <= hi
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
