package game

import "testing"

func TestPlaceAndOccupied(t *testing.T) {
	b := NewBoard()
	if b.Occupied(3, 4) {
		t.Fatal("empty board reports occupied cell")
	}
	b.Place(3, 4, SlotBlack)
	if !b.Occupied(3, 4) {
		t.Fatal("placed cell not occupied")
	}
	if b.StoneCount() != 1 {
		t.Fatalf("stone count = %d, want 1", b.StoneCount())
	}
}

func TestWinningMoveHorizontal(t *testing.T) {
	b := NewBoard()
	for col := 0; col < 4; col++ {
		b.Place(5, col, SlotBlack)
	}
	b.Place(5, 4, SlotBlack)
	if !b.WinningMove(5, 4, SlotBlack) {
		t.Fatal("five in a row not detected")
	}
}

func TestWinningMoveVertical(t *testing.T) {
	b := NewBoard()
	for row := 2; row < 7; row++ {
		b.Place(row, 10, SlotWhite)
	}
	if !b.WinningMove(4, 10, SlotWhite) {
		t.Fatal("vertical five not detected from a middle stone")
	}
}

func TestWinningMoveDiagonals(t *testing.T) {
	b := NewBoard()
	for i := 0; i < 5; i++ {
		b.Place(i, i, SlotBlack)
	}
	if !b.WinningMove(4, 4, SlotBlack) {
		t.Fatal("down-right diagonal not detected")
	}

	b2 := NewBoard()
	for i := 0; i < 5; i++ {
		b2.Place(i, 10-i, SlotWhite)
	}
	if !b2.WinningMove(0, 10, SlotWhite) {
		t.Fatal("down-left diagonal not detected")
	}
}

func TestWinningMoveCountsBothArms(t *testing.T) {
	// Stones at cols 0-1 and 3-4, then filling col 2 joins them.
	b := NewBoard()
	b.Place(8, 0, SlotBlack)
	b.Place(8, 1, SlotBlack)
	b.Place(8, 3, SlotBlack)
	b.Place(8, 4, SlotBlack)
	b.Place(8, 2, SlotBlack)
	if !b.WinningMove(8, 2, SlotBlack) {
		t.Fatal("gap-filling move not detected as a win")
	}
}

func TestOverlineWins(t *testing.T) {
	b := NewBoard()
	for col := 0; col < 6; col++ {
		b.Place(12, col, SlotWhite)
	}
	if !b.WinningMove(12, 5, SlotWhite) {
		t.Fatal("six in a row should win")
	}
}

func TestFourIsNotAWin(t *testing.T) {
	b := NewBoard()
	for col := 0; col < 4; col++ {
		b.Place(0, col, SlotBlack)
	}
	if b.WinningMove(0, 3, SlotBlack) {
		t.Fatal("four in a row should not win")
	}
}

func TestOpponentStoneBreaksLine(t *testing.T) {
	b := NewBoard()
	b.Place(6, 0, SlotBlack)
	b.Place(6, 1, SlotBlack)
	b.Place(6, 2, SlotWhite)
	b.Place(6, 3, SlotBlack)
	b.Place(6, 4, SlotBlack)
	b.Place(6, 5, SlotBlack)
	if b.WinningMove(6, 5, SlotBlack) {
		t.Fatal("line broken by opponent stone should not win")
	}
}

func TestFullBoard(t *testing.T) {
	b := NewBoard()
	slot := SlotBlack
	for row := 0; row < BoardRows; row++ {
		for col := 0; col < BoardCols; col++ {
			b.Place(row, col, slot)
			slot = slot.Other()
		}
	}
	if !b.Full() {
		t.Fatalf("board with %d stones not full", b.StoneCount())
	}
}

func TestReset(t *testing.T) {
	b := NewBoard()
	b.Place(1, 1, SlotBlack)
	b.Reset()
	if b.Occupied(1, 1) || b.StoneCount() != 0 || len(b.Moves()) != 0 {
		t.Fatal("reset did not clear the board")
	}
}

func TestSlotOther(t *testing.T) {
	if SlotBlack.Other() != SlotWhite || SlotWhite.Other() != SlotBlack {
		t.Fatal("Other() does not flip slots")
	}
}
