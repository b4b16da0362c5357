package sim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// ResultFormat selects the JSON layout of an encoded trajectory.
type ResultFormat string

const (
	// FormatMap encodes {"<time>": [S, E, I, R], ...} in sample order.
	FormatMap ResultFormat = "map"
	// FormatRecords encodes {"samples": [{"time": t, "state": [S, E, I, R]}, ...]}.
	FormatRecords ResultFormat = "records"
)

// validResultFormats maps accepted format names.
var validResultFormats = map[ResultFormat]bool{
	FormatMap:     true,
	FormatRecords: true,
	"":            true, // empty defaults to map
}

// IsValidResultFormat returns true if name is a recognized result format.
func IsValidResultFormat(name string) bool {
	return validResultFormats[ResultFormat(name)]
}

// ParseResultFormat converts a format name, defaulting "" to FormatMap.
func ParseResultFormat(name string) (ResultFormat, error) {
	if !IsValidResultFormat(name) {
		return "", fmt.Errorf("unknown result format %q; valid: map, records", name)
	}
	if name == "" {
		return FormatMap, nil
	}
	return ResultFormat(name), nil
}

type sampleRecord struct {
	Time  float64     `json:"time"`
	State StateVector `json:"state"`
}

type recordsPayload struct {
	Samples []sampleRecord `json:"samples"`
}

// FormatTime renders a sample time as a map key. It uses the shortest
// decimal that round-trips, so distinct times never share a key.
func FormatTime(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}

// MarshalTrajectory encodes tr in the given format. It fails if sample times
// are not strictly increasing or a value is not representable in JSON.
func MarshalTrajectory(tr Trajectory, format ResultFormat) ([]byte, error) {
	for i := 1; i < len(tr); i++ {
		if !(tr[i].Time > tr[i-1].Time) {
			return nil, fmt.Errorf("sample %d: time %g does not follow %g", i, tr[i].Time, tr[i-1].Time)
		}
	}

	switch format {
	case FormatMap, "":
		return marshalMap(tr)
	case FormatRecords:
		payload := recordsPayload{Samples: make([]sampleRecord, len(tr))}
		for i, s := range tr {
			payload.Samples[i] = sampleRecord{Time: s.Time, State: s.State}
		}
		return json.Marshal(payload)
	default:
		return nil, fmt.Errorf("unknown result format %q", format)
	}
}

// EncodeTrajectory writes MarshalTrajectory(tr, format) to w.
func EncodeTrajectory(w io.Writer, tr Trajectory, format ResultFormat) error {
	data, err := MarshalTrajectory(tr, format)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalMap(tr Trajectory) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range tr {
		if i > 0 {
			buf.WriteByte(',')
		}
		// keys contain only digits, '-' and '.', so no escaping is needed
		buf.WriteByte('"')
		buf.WriteString(FormatTime(s.Time))
		buf.WriteString(`":`)
		state, err := json.Marshal(s.State)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		buf.Write(state)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
