package game

// Board dimensions. The grid is wider than it is tall to match the
// landscape client layout. A full board (every cell occupied) is a draw.
const (
	BoardRows = 18
	BoardCols = 28
	WinLength = 5
)

// Slot identifies a seat in a session. Black is slotA (the creator or the
// first player dequeued) and always opens the first round.
type Slot string

const (
	SlotBlack Slot = "black"
	SlotWhite Slot = "white"
)

// Other returns the opposing slot.
func (s Slot) Other() Slot {
	if s == SlotBlack {
		return SlotWhite
	}
	return SlotBlack
}

// Stone is one placed piece.
type Stone struct {
	Row  int  `json:"row"`
	Col  int  `json:"col"`
	Slot Slot `json:"slot"`
}

type cell struct {
	row, col int
}

// Board holds placed stones keyed by cell. Not safe for concurrent use;
// callers hold the session lock.
type Board struct {
	cells map[cell]Slot
	moves []Stone
}

func NewBoard() *Board {
	return &Board{cells: make(map[cell]Slot)}
}

// InBounds reports whether the cell lies on the grid.
func InBounds(row, col int) bool {
	return row >= 0 && row < BoardRows && col >= 0 && col < BoardCols
}

// Occupied reports whether a stone sits at (row, col).
func (b *Board) Occupied(row, col int) bool {
	_, ok := b.cells[cell{row, col}]
	return ok
}

// Place records a stone. The caller must have checked bounds and occupancy.
func (b *Board) Place(row, col int, slot Slot) {
	b.cells[cell{row, col}] = slot
	b.moves = append(b.moves, Stone{Row: row, Col: col, Slot: slot})
}

// StoneCount returns the number of placed stones.
func (b *Board) StoneCount() int {
	return len(b.cells)
}

// Full reports whether every cell is occupied.
func (b *Board) Full() bool {
	return len(b.cells) >= BoardRows*BoardCols
}

// Moves returns the move history in placement order.
func (b *Board) Moves() []Stone {
	out := make([]Stone, len(b.moves))
	copy(out, b.moves)
	return out
}

// Reset clears all stones and history.
func (b *Board) Reset() {
	b.cells = make(map[cell]Slot)
	b.moves = nil
}

// directions for the win scan: horizontal, vertical, and both diagonals.
var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

// WinningMove reports whether the stone just placed at (row, col) completes
// a line of at least WinLength stones for slot. Both arms of each direction
// are counted, so overlines also win.
func (b *Board) WinningMove(row, col int, slot Slot) bool {
	for _, d := range directions {
		count := 1
		for _, sign := range [2]int{1, -1} {
			r, c := row+sign*d[0], col+sign*d[1]
			for InBounds(r, c) && b.cells[cell{r, c}] == slot {
				count++
				r += sign * d[0]
				c += sign * d[1]
			}
		}
		if count >= WinLength {
			return true
		}
	}
	return false
}
