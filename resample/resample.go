// Package resample merges N asynchronous per-device time series onto one
// common timeline. The device whose series spans the least time becomes the
// reference; every reference sample defines a window reaching halfway to its
// neighbors, other devices' samples are averaged per window, and empty
// windows carry the previous output row forward. This is a batch offline
// process: any cell that fails to parse aborts the whole run, because a
// partially wrong aligned table is worse than none.
package resample

import (
	"fmt"

	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/errors"
	"github.com/c360/motionlog/table"
)

// axes per device in the aggregated output: x, y, z.
const outAxes = 3

// block is one device's parsed series: the valid rows (non-empty time cell)
// of its five-column group.
type block struct {
	timeLabel  string
	axisLabels [outAxes]string
	times      []float64
	axes       [outAxes][]float64
}

// span is the duration covered by the block's own first and last samples.
func (b *block) span() float64 {
	return b.times[len(b.times)-1] - b.times[0]
}

// Aggregate resamples a live table onto the reference timeline and returns
// the aligned output table: one shared time column followed by three columns
// per device in original column order.
func Aggregate(t *table.Table) (*table.Table, error) {
	blocks, err := parseBlocks(t)
	if err != nil {
		return nil, err
	}

	ref := selectReference(blocks)
	refTimes := blocks[ref].times

	// values[0] is the shared timeline; then x, y, z per device.
	values := make([][]float64, 1+len(blocks)*outAxes)
	for i := range values {
		values[i] = make([]float64, len(refTimes))
	}

	for r, target := range refTimes {
		values[0][r] = target
		lower, upper := windowBounds(refTimes, r)

		for b, blk := range blocks {
			var sums [outAxes]float64
			counted := 0

			for i, ts := range blk.times {
				if ts == target || (ts >= lower && ts < upper) {
					for a := 0; a < outAxes; a++ {
						sums[a] += blk.axes[a][i]
					}
					counted++
				} else if ts > upper {
					// Timestamps within one device are non-decreasing, so
					// nothing later can fall inside this window.
					break
				}
			}

			base := 1 + b*outAxes
			if counted == 0 {
				if r > 0 {
					for a := 0; a < outAxes; a++ {
						values[base+a][r] = values[base+a][r-1]
					}
				}
				// No previous row: the cells stay at their zero default.
				continue
			}

			for a := 0; a < outAxes; a++ {
				values[base+a][r] = sums[a] / float64(counted)
			}
		}
	}

	return buildOutput(blocks, ref, values), nil
}

// parseBlocks splits the table into per-device blocks of five columns and
// parses their valid rows. Any numeric parse failure is fatal for the run.
func parseBlocks(t *table.Table) ([]*block, error) {
	nblocks := len(t.Columns) / device.ColumnsPerDevice
	if nblocks == 0 {
		return nil, errors.WrapFatal(
			fmt.Errorf("table has %d columns, no device blocks: %w",
				len(t.Columns), errors.ErrInvalidData),
			"resample", "parseBlocks", "table layout validation")
	}

	blocks := make([]*block, 0, nblocks)
	for b := 0; b < nblocks; b++ {
		base := b * device.ColumnsPerDevice
		timeCol := t.Columns[base]

		blk := &block{timeLabel: timeCol.Label}
		for a := 0; a < outAxes; a++ {
			blk.axisLabels[a] = t.Columns[base+1+a].Label
		}

		for row, cell := range timeCol.Cells {
			if cell == "" {
				continue
			}

			ts, err := table.ParseFloat(cell)
			if err != nil {
				return nil, errors.WrapFatal(
					fmt.Errorf("block %d row %d time cell %q: %w", b, row, cell, err),
					"resample", "parseBlocks", "time cell parsing")
			}
			blk.times = append(blk.times, ts)

			for a := 0; a < outAxes; a++ {
				col := t.Columns[base+1+a]
				if row >= len(col.Cells) {
					return nil, errors.WrapFatal(
						fmt.Errorf("block %d row %d has a time cell but no %s cell: %w",
							b, row, axisName(a), errors.ErrInvalidData),
						"resample", "parseBlocks", "block shape validation")
				}
				v, err := table.ParseFloat(col.Cells[row])
				if err != nil {
					return nil, errors.WrapFatal(
						fmt.Errorf("block %d row %d %s cell %q: %w",
							b, row, axisName(a), col.Cells[row], err),
						"resample", "parseBlocks", "axis cell parsing")
				}
				blk.axes[a] = append(blk.axes[a], v)
			}
		}

		if len(blk.times) == 0 {
			return nil, errors.WrapFatal(
				fmt.Errorf("device block %d has no samples: %w", b, errors.ErrInvalidData),
				"resample", "parseBlocks", "block content validation")
		}

		blocks = append(blocks, blk)
	}

	return blocks, nil
}

// windowBounds computes the half-open window around reference row r using
// midpoints to the neighboring reference samples. Boundary rows use
// themselves as the missing neighbor, so the first and last windows touch
// only that single point on the open side.
func windowBounds(times []float64, r int) (lower, upper float64) {
	target := times[r]
	prev := target
	if r > 0 {
		prev = times[r-1]
	}
	next := target
	if r < len(times)-1 {
		next = times[r+1]
	}
	return (prev + target) / 2, (target + next) / 2
}

// selectReference returns the index of the block with the smallest time span.
// Ties go to the first such block in column order.
func selectReference(blocks []*block) int {
	ref := 0
	smallest := blocks[0].span()
	for i, blk := range blocks[1:] {
		if s := blk.span(); s < smallest {
			smallest = s
			ref = i + 1
		}
	}
	return ref
}

// buildOutput renders the aligned values as a table. The header keeps the
// live table's axis labels; the reference's time label stands in for the
// shared timeline and the per-device time labels are dropped with the time
// columns they labeled.
func buildOutput(blocks []*block, ref int, values [][]float64) *table.Table {
	out := &table.Table{Columns: make([]table.Column, 0, len(values))}

	out.Columns = append(out.Columns, table.Column{
		Label: blocks[ref].timeLabel,
		Cells: formatColumn(values[0]),
	})

	for b, blk := range blocks {
		for a := 0; a < outAxes; a++ {
			out.Columns = append(out.Columns, table.Column{
				Label: blk.axisLabels[a],
				Cells: formatColumn(values[1+b*outAxes+a]),
			})
		}
	}

	return out
}

func formatColumn(values []float64) []string {
	cells := make([]string, len(values))
	for i, v := range values {
		cells[i] = table.FormatFloat(v)
	}
	return cells
}

func axisName(a int) string {
	return [outAxes]string{"x", "y", "z"}[a]
}
