package allocation

import (
	"fmt"
	"strconv"

	"railticket/internal/domain"
)

// seatMatrix is one carriage's occupancy for a segment. true = occupied.
type seatMatrix [domain.CarriageRows][domain.CarriageColumns]bool

// buildMatrix marks the occupied labels in a fresh matrix. Labels that do
// not parse are rejected rather than skipped: a corrupt ledger entry must
// not silently free a seat.
func buildMatrix(occupiedLabels []string) (seatMatrix, error) {
	var m seatMatrix
	for _, label := range occupiedLabels {
		coord, err := domain.ParseSeatLabel(label)
		if err != nil {
			return m, err
		}
		m[coord.Row][coord.Col] = true
	}
	return m, nil
}

func (m *seatMatrix) freeCount() int {
	count := 0
	for r := 0; r < domain.CarriageRows; r++ {
		for c := 0; c < domain.CarriageColumns; c++ {
			if !m[r][c] {
				count++
			}
		}
	}
	return count
}

// freeSeats lists vacant coordinates in row-major order.
func (m *seatMatrix) freeSeats() []domain.SeatCoordinate {
	var free []domain.SeatCoordinate
	for r := 0; r < domain.CarriageRows; r++ {
		for c := 0; c < domain.CarriageColumns; c++ {
			if !m[r][c] {
				free = append(free, domain.SeatCoordinate{Row: r, Col: c})
			}
		}
	}
	return free
}

func (m *seatMatrix) occupy(seats []domain.SeatCoordinate) {
	for _, s := range seats {
		m[s.Row][s.Col] = true
	}
}

// adjacent finds n consecutive free seats within a single row, scanning rows
// top to bottom. Returns nil when no row has such a block.
func adjacent(n int, m *seatMatrix) []domain.SeatCoordinate {
	if n <= 0 || n > domain.CarriageColumns {
		return nil
	}
	for r := 0; r < domain.CarriageRows; r++ {
		run := 0
		for c := 0; c < domain.CarriageColumns; c++ {
			if m[r][c] {
				run = 0
				continue
			}
			run++
			if run == n {
				block := make([]domain.SeatCoordinate, 0, n)
				for i := c - n + 1; i <= c; i++ {
					block = append(block, domain.SeatCoordinate{Row: r, Col: i})
				}
				return block
			}
		}
	}
	return nil
}

// nonAdjacent takes up to n free seats in row-major order.
func nonAdjacent(n int, m *seatMatrix) []domain.SeatCoordinate {
	if n <= 0 {
		return nil
	}
	var seats []domain.SeatCoordinate
	for r := 0; r < domain.CarriageRows && len(seats) < n; r++ {
		for c := 0; c < domain.CarriageColumns && len(seats) < n; c++ {
			if !m[r][c] {
				seats = append(seats, domain.SeatCoordinate{Row: r, Col: c})
			}
		}
	}
	return seats
}

// parseChosenSeat decodes a chosen-seat token: column letter followed by a
// row index ("A0", "F1"). This is the picker convention, distinct from the
// "01A" seat-number format.
func parseChosenSeat(token string) (domain.SeatCoordinate, error) {
	if len(token) < 2 {
		return domain.SeatCoordinate{}, fmt.Errorf("chosen seat %q too short", token)
	}
	col := -1
	for i, letter := range []byte{'A', 'B', 'C', 'D', 'F'} {
		if token[0] == letter {
			col = i
			break
		}
	}
	if col < 0 {
		return domain.SeatCoordinate{}, fmt.Errorf("chosen seat %q: unknown column %q", token, string(token[0]))
	}
	row, err := strconv.Atoi(token[1:])
	if err != nil {
		return domain.SeatCoordinate{}, fmt.Errorf("chosen seat %q: bad row: %w", token, err)
	}
	if row < 0 || row >= domain.CarriageRows {
		return domain.SeatCoordinate{}, fmt.Errorf("chosen seat %q: row %d out of range", token, row)
	}
	return domain.SeatCoordinate{Row: row, Col: col}, nil
}

// matchChosenOffsets looks for a placement that preserves the chosen seats'
// relative offsets from their first seat. The anchor keeps the first seat's
// column and slides down the rows; the whole set must be free at once.
// Returns nil when no anchor works in this carriage.
func matchChosenOffsets(m *seatMatrix, chosen []domain.SeatCoordinate) []domain.SeatCoordinate {
	if len(chosen) == 0 {
		return nil
	}
	first := chosen[0]
	type offset struct{ dr, dc int }
	offsets := make([]offset, 0, len(chosen)-1)
	minRowOffset := 0
	for _, c := range chosen[1:] {
		dr := c.Row - first.Row
		if dr < minRowOffset {
			minRowOffset = dr
		}
		offsets = append(offsets, offset{dr: dr, dc: c.Col - first.Col})
	}

	for anchor := -minRowOffset; anchor < domain.CarriageRows; anchor++ {
		if m[anchor][first.Col] {
			continue
		}
		placed := []domain.SeatCoordinate{{Row: anchor, Col: first.Col}}
		for _, off := range offsets {
			row := anchor + off.dr
			if row >= domain.CarriageRows {
				return nil
			}
			col := first.Col + off.dc
			if m[row][col] {
				break
			}
			placed = append(placed, domain.SeatCoordinate{Row: row, Col: col})
		}
		if len(placed) == len(chosen) {
			return placed
		}
	}
	return nil
}
