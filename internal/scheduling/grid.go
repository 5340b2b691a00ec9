package scheduling

import (
	"fmt"
	"sort"

	"github.com/noah-isme/college-scheduling-api/internal/models"
)

// CellState classifies a grid cell.
type CellState int

const (
	// CellEmpty has no entry.
	CellEmpty CellState = iota
	// CellAnchor is where a single entry starts; Span slots are merged from here.
	CellAnchor
	// CellContinuation is covered by the anchor above it and is not rendered on its own.
	CellContinuation
	// CellMultiple is where two or more entries of one column collide. The
	// cluster is merged over Span slots and lists every entry involved.
	CellMultiple
)

var cellStateNames = [...]string{"EMPTY", "ANCHOR", "CONTINUATION", "MULTIPLE"}

// String returns the upper-case state name.
func (s CellState) String() string {
	if s < CellEmpty || s > CellMultiple {
		return "UNKNOWN"
	}
	return cellStateNames[s]
}

// MarshalText encodes the state by name.
func (s CellState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name, so cached grids round-trip.
func (s *CellState) UnmarshalText(text []byte) error {
	for i, name := range cellStateNames {
		if name == string(text) {
			*s = CellState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown cell state %q", text)
}

// Cell is one (slot, column) position in the grid. Entry and Entries hold
// indexes into the entries slice given to Layout.
type Cell struct {
	State CellState `json:"state"`
	// Entry is the single entry of an anchor or continuation cell, -1 otherwise.
	Entry int `json:"entry"`
	// Entries lists the colliding entries of a multiple cell and its continuations.
	Entries []int `json:"entries,omitempty"`
	// Span is the number of merged slots starting at an anchor or multiple cell.
	Span int `json:"span,omitempty"`
	// AnchorSlot is the slot index of the cell a continuation belongs to.
	AnchorSlot int `json:"anchor_slot"`
}

// Column is one resource of the grid (a room, a faculty member or a section).
type Column struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Grid is the renderer-agnostic timetable of one day.
type Grid struct {
	Slots   []Slot   `json:"slots"`
	Columns []Column `json:"columns"`
	// Cells is indexed [slot][column].
	Cells [][]Cell `json:"cells"`
}

// Cell returns the cell at the given slot and column index.
func (g Grid) Cell(slot, column int) Cell {
	return g.Cells[slot][column]
}

// Placement is a rendered block: an anchor or multiple cell with its span.
type Placement struct {
	Slot    int
	Column  int
	Span    int
	Entries []int
}

// Placements lists every anchor and multiple cell in column-major order.
func (g Grid) Placements() []Placement {
	var out []Placement
	for col := range g.Columns {
		for slot := range g.Slots {
			cell := g.Cells[slot][col]
			switch cell.State {
			case CellAnchor:
				out = append(out, Placement{Slot: slot, Column: col, Span: cell.Span, Entries: []int{cell.Entry}})
			case CellMultiple:
				out = append(out, Placement{Slot: slot, Column: col, Span: cell.Span, Entries: append([]int(nil), cell.Entries...)})
			}
		}
	}
	return out
}

// HasCollisions reports whether any column holds a multiple cell.
func (g Grid) HasCollisions() bool {
	for _, row := range g.Cells {
		for _, cell := range row {
			if cell.State == CellMultiple {
				return true
			}
		}
	}
	return false
}

// run is the contiguous slot range [from, to) an entry occupies.
type run struct {
	entry    int
	from, to int
}

// Layout arranges one day's entries into slots and columns. An entry
// belongs to the column whose ID equals key(entry); entries with no
// matching column or no overlapping slot are left out. Slots must be sorted
// and non-overlapping.
func Layout(entries []models.ScheduleEntry, slots []Slot, columns []Column, key Key) Grid {
	grid := Grid{
		Slots:   append([]Slot(nil), slots...),
		Columns: append([]Column(nil), columns...),
		Cells:   make([][]Cell, len(slots)),
	}
	for i := range grid.Cells {
		row := make([]Cell, len(columns))
		for j := range row {
			row[j] = Cell{State: CellEmpty, Entry: -1, AnchorSlot: -1}
		}
		grid.Cells[i] = row
	}

	columnIndex := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := columnIndex[c.ID]; !dup {
			columnIndex[c.ID] = i
		}
	}

	runs := make([][]run, len(columns))
	for i, e := range entries {
		col, ok := columnIndex[key(e)]
		if !ok {
			continue
		}
		from, span := anchorAndSpan(EntryInterval(e), slots)
		if span == 0 {
			continue
		}
		runs[col] = append(runs[col], run{entry: i, from: from, to: from + span})
	}

	for col, colRuns := range runs {
		for _, cluster := range clusterRuns(colRuns) {
			placeCluster(grid.Cells, col, cluster)
		}
	}
	return grid
}

// anchorAndSpan finds the slot holding the entry start and counts the
// consecutive slots the entry still covers. An entry starting before the
// first slot, or inside a gap, anchors at its first overlapping slot.
func anchorAndSpan(iv Interval, slots []Slot) (int, int) {
	anchor := -1
	for i, s := range slots {
		if iv.Start >= s.Start && iv.Start < s.End {
			anchor = i
			break
		}
	}
	if anchor < 0 {
		for i, s := range slots {
			if Overlaps(iv, s.Interval()) {
				anchor = i
				break
			}
		}
	}
	if anchor < 0 {
		return 0, 0
	}

	span := 0
	for i := anchor; i < len(slots); i++ {
		if slots[i].Start >= iv.End {
			break
		}
		span++
	}
	return anchor, span
}

// clusterRuns groups runs whose slot ranges overlap, transitively.
func clusterRuns(runs []run) [][]run {
	if len(runs) == 0 {
		return nil
	}
	sorted := append([]run(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].from < sorted[j].from })

	var clusters [][]run
	current := []run{sorted[0]}
	end := sorted[0].to
	for _, r := range sorted[1:] {
		if r.from < end {
			current = append(current, r)
			if r.to > end {
				end = r.to
			}
			continue
		}
		clusters = append(clusters, current)
		current = []run{r}
		end = r.to
	}
	return append(clusters, current)
}

func placeCluster(cells [][]Cell, col int, cluster []run) {
	from, to := cluster[0].from, cluster[0].to
	for _, r := range cluster[1:] {
		if r.to > to {
			to = r.to
		}
	}

	if len(cluster) == 1 {
		entry := cluster[0].entry
		cells[from][col] = Cell{State: CellAnchor, Entry: entry, Span: to - from, AnchorSlot: from}
		for s := from + 1; s < to; s++ {
			cells[s][col] = Cell{State: CellContinuation, Entry: entry, AnchorSlot: from}
		}
		return
	}

	ids := make([]int, len(cluster))
	for i, r := range cluster {
		ids[i] = r.entry
	}
	sort.Ints(ids)
	cells[from][col] = Cell{State: CellMultiple, Entry: -1, Entries: ids, Span: to - from, AnchorSlot: from}
	for s := from + 1; s < to; s++ {
		cells[s][col] = Cell{State: CellContinuation, Entry: -1, Entries: ids, AnchorSlot: from}
	}
}

// EntriesForDay returns the entries scheduled on day, preserving order.
func EntriesForDay(entries []models.ScheduleEntry, day models.Weekday) []models.ScheduleEntry {
	var out []models.ScheduleEntry
	for _, e := range entries {
		if e.DayOfWeek == day {
			out = append(out, e)
		}
	}
	return out
}
