// Package wire decodes the motionlog datagram format, a UTF-8 comma-separated
// payload carrying one shared timestamp followed by per-device X/Y/Z groups:
//
//	<timestamp>,<device_id>,<x>,<y>,<z>[,<device_id>,<x>,<y>,<z>]...
//
// Fields may carry surrounding whitespace, which is trimmed. Parsing is
// all-or-nothing: a payload with a wrong field count or any unparsable field
// yields no batch. Malformed payloads are classified Invalid so the ingestion
// loop can drop them and keep collecting.
package wire

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/motionlog/errors"
)

// Reading is one device's sample within a batch. Immutable once constructed.
type Reading struct {
	Device uint8
	X      float64
	Y      float64
	Z      float64
}

// Batch is one datagram's worth of readings sharing a single timestamp.
type Batch struct {
	Timestamp float64
	Readings  []Reading
}

// fieldsPerReading is the wire layout of one device group: id, x, y, z.
const fieldsPerReading = 4

// ParseBatch decodes one raw datagram payload into a Batch. The returned
// error is always classified Invalid; callers log and drop, never abort.
func ParseBatch(payload []byte) (Batch, error) {
	parts := strings.Split(string(payload), ",")

	timestamp, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return Batch{}, errors.WrapInvalid(
			fmt.Errorf("timestamp %q: %w", strings.TrimSpace(parts[0]), errors.ErrParsingFailed),
			"wire", "ParseBatch", "timestamp parsing")
	}

	rest := parts[1:]
	if len(rest)%fieldsPerReading != 0 {
		return Batch{}, errors.WrapInvalid(
			fmt.Errorf("message wrong length: %d fields after timestamp: %w",
				len(rest), errors.ErrInvalidData),
			"wire", "ParseBatch", "field count validation")
	}

	batch := Batch{
		Timestamp: timestamp,
		Readings:  make([]Reading, 0, len(rest)/fieldsPerReading),
	}

	for i := 0; i < len(rest); i += fieldsPerReading {
		reading, err := parseReading(rest[i : i+fieldsPerReading])
		if err != nil {
			// No partial batches: one bad group drops the whole datagram.
			return Batch{}, err
		}
		batch.Readings = append(batch.Readings, reading)
	}

	return batch, nil
}

// parseReading decodes one <device_id>,<x>,<y>,<z> group.
func parseReading(fields []string) (Reading, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 8)
	if err != nil {
		return Reading{}, errors.WrapInvalid(
			fmt.Errorf("device id %q: %w", strings.TrimSpace(fields[0]), errors.ErrParsingFailed),
			"wire", "parseReading", "device id parsing")
	}

	var axes [3]float64
	for i, field := range fields[1:] {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return Reading{}, errors.WrapInvalid(
				fmt.Errorf("axis value %q: %w", strings.TrimSpace(field), errors.ErrParsingFailed),
				"wire", "parseReading", "axis parsing")
		}
		axes[i] = v
	}

	return Reading{
		Device: uint8(id),
		X:      axes[0],
		Y:      axes[1],
		Z:      axes[2],
	}, nil
}
