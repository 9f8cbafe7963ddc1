// Package device holds the immutable registry of declared sensors. The
// operator declares every device up front; a reading for an undeclared device
// observed mid-run is a fatal misconfiguration, never silently ignored.
package device

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/c360/motionlog/errors"
)

// TimeLabel is the header label of every per-device time column.
const TimeLabel = "Time (s)"

// ColumnsPerDevice is the table width reserved per device:
// time, x, y, z and a blank spacer column.
const ColumnsPerDevice = 5

// Declaration is one operator-supplied device entry.
type Declaration struct {
	ID   uint8  `yaml:"id"`
	Name string `yaml:"name"`
}

// Entry is a registered device with its assigned column offset.
type Entry struct {
	ID     uint8
	Name   string
	Offset int // first column of this device's block, a multiple of ColumnsPerDevice
}

// AxisLabel renders the header label for one of the device's data columns,
// e.g. "chest: X (1)".
func (e Entry) AxisLabel(axis string) string {
	return fmt.Sprintf("%s: %s (%d)", e.Name, axis, e.ID)
}

// Registry is an immutable device_id -> entry mapping built once at startup.
type Registry struct {
	entries []Entry
	byID    map[uint8]int
}

// New builds a registry from declarations, assigning column offsets in
// declaration order. Duplicate ids and empty names are Invalid errors.
func New(decls []Declaration) (*Registry, error) {
	if len(decls) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("no devices declared: %w", errors.ErrMissingConfig),
			"Registry", "New", "declaration validation")
	}

	r := &Registry{
		entries: make([]Entry, 0, len(decls)),
		byID:    make(map[uint8]int, len(decls)),
	}

	for _, d := range decls {
		name := strings.TrimSpace(d.Name)
		if name == "" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("name not supplied for device number %d: %w", d.ID, errors.ErrInvalidConfig),
				"Registry", "New", "declaration validation")
		}
		if _, exists := r.byID[d.ID]; exists {
			return nil, errors.WrapInvalid(
				fmt.Errorf("device id %d declared twice: %w", d.ID, errors.ErrInvalidConfig),
				"Registry", "New", "declaration validation")
		}

		entry := Entry{
			ID:     d.ID,
			Name:   name,
			Offset: len(r.entries) * ColumnsPerDevice,
		}
		r.byID[d.ID] = len(r.entries)
		r.entries = append(r.entries, entry)
	}

	return r, nil
}

// ParseDeclaration parses the operator's single-line device declaration,
// a comma-separated list of <device_id>:<name> pairs.
func ParseDeclaration(line string) (*Registry, error) {
	var decls []Declaration

	for _, part := range strings.Split(line, ",") {
		subparts := strings.SplitN(part, ":", 2)
		if len(subparts) != 2 {
			return nil, errors.WrapInvalid(
				fmt.Errorf("entry %q is not <device #>:<name> (do not use a trailing comma): %w",
					strings.TrimSpace(part), errors.ErrInvalidConfig),
				"Registry", "ParseDeclaration", "entry parsing")
		}

		idStr := strings.TrimSpace(subparts[0])
		id, err := strconv.ParseUint(idStr, 10, 8)
		if err != nil {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%q is not an integer in [0,255]: %w", idStr, errors.ErrInvalidConfig),
				"Registry", "ParseDeclaration", "device id parsing")
		}

		decls = append(decls, Declaration{
			ID:   uint8(id),
			Name: strings.TrimSpace(subparts[1]),
		})
	}

	return New(decls)
}

// Lookup returns the entry for a device id.
func (r *Registry) Lookup(id uint8) (Entry, bool) {
	idx, ok := r.byID[id]
	if !ok {
		return Entry{}, false
	}
	return r.entries[idx], true
}

// Entries returns all entries in declaration order.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	return len(r.entries)
}
