package forecast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// statusOK is the provider's success code. The forecast endpoint sends it as
// a string, the current-weather endpoint as a number; both are accepted.
const statusOK = "200"

// ParsePayload decodes a provider forecast document and returns its samples.
func ParsePayload(data []byte) ([]Sample, error) {
	p, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return p.Samples, nil
}

// Decode decodes a provider forecast document.
//
// The status code and the presence of the sample list are checked before any
// sample is inspected. Mandatory sample fields are validated one sample at a
// time; the first malformed sample aborts the decode.
func Decode(data []byte) (*Payload, error) {
	var doc payloadDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: decoding payload: %s", ErrInvalidInput, err.Error())
	}

	if code := rawString(doc.Cod); code != statusOK {
		msg := rawString(doc.Message)
		if msg == "" {
			msg = "no message"
		}
		return nil, fmt.Errorf("%w: status %q: %s", ErrInvalidInput, code, msg)
	}

	if doc.List == nil {
		return nil, fmt.Errorf("%w: payload has no sample list", ErrInvalidInput)
	}

	samples := make([]Sample, 0, len(doc.List))
	for i, raw := range doc.List {
		s, err := parseSample(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %w: sample %d: %s", ErrInvalidInput, ErrMalformedSample, i, err.Error())
		}
		samples = append(samples, s)
	}

	return &Payload{
		City: City{
			Name:     doc.City.Name,
			Country:  doc.City.Country,
			Lat:      doc.City.Coord.Lat,
			Lon:      doc.City.Coord.Lon,
			Timezone: doc.City.Timezone,
		},
		Samples: samples,
	}, nil
}

func parseSample(raw json.RawMessage) (Sample, error) {
	var w sampleDocument
	if err := json.Unmarshal(raw, &w); err != nil {
		return Sample{}, err
	}

	if w.DtTxt == nil {
		return Sample{}, fmt.Errorf("missing dt_txt")
	}
	ts, err := time.Parse(TimestampLayout, *w.DtTxt)
	if err != nil {
		return Sample{}, fmt.Errorf("parsing dt_txt: %w", err)
	}

	if w.Main == nil || w.Main.Temp == nil {
		return Sample{}, fmt.Errorf("missing main.temp")
	}
	if w.Main.Humidity == nil {
		return Sample{}, fmt.Errorf("missing main.humidity")
	}
	if w.Wind == nil || w.Wind.Speed == nil {
		return Sample{}, fmt.Errorf("missing wind.speed")
	}

	return Sample{
		Time:        ts,
		Temperature: *w.Main.Temp,
		Humidity:    RoundHumidity(*w.Main.Humidity),
		WindSpeed:   *w.Wind.Speed,
		Rain3h:      accumulation(w.Rain),
		Snow3h:      accumulation(w.Snow),
	}, nil
}

// RoundHumidity converts a provider humidity reading to a whole percentage,
// rounding half away from zero.
func RoundHumidity(v float64) int {
	return int(math.Round(v))
}

// accumulation reads the "3h" volume from an optional rain/snow block.
// Anything that is not an object holding a number yields 0.
func accumulation(raw json.RawMessage) float64 {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0
	}
	var block struct {
		ThreeHour *float64 `json:"3h"`
	}
	if err := json.Unmarshal(raw, &block); err != nil || block.ThreeHour == nil {
		return 0
	}
	return *block.ThreeHour
}

// rawString renders a JSON scalar (string or number) as plain text.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(raw))
}

type payloadDocument struct {
	Cod     json.RawMessage   `json:"cod"`
	Message json.RawMessage   `json:"message"`
	List    []json.RawMessage `json:"list"`
	City    struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Coord   struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Timezone int `json:"timezone"`
	} `json:"city"`
}

type sampleDocument struct {
	DtTxt *string `json:"dt_txt"`
	Main  *struct {
		Temp     *float64 `json:"temp"`
		Humidity *float64 `json:"humidity"`
	} `json:"main"`
	Wind *struct {
		Speed *float64 `json:"speed"`
	} `json:"wind"`
	Rain json.RawMessage `json:"rain"`
	Snow json.RawMessage `json:"snow"`
}
