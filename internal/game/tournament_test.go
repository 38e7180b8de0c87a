package game

import "testing"

func TestWinsNeeded(t *testing.T) {
	cases := []struct {
		rounds int
		want   int
	}{
		{1, 1},
		{3, 2},
		{5, 3},
		{7, 4},
	}
	for _, c := range cases {
		if got := NewTournament(c.rounds).WinsNeeded(); got != c.want {
			t.Errorf("WinsNeeded(%d rounds) = %d, want %d", c.rounds, got, c.want)
		}
	}
}

func TestBestOfThreeClinch(t *testing.T) {
	tr := NewTournament(3)

	over, _ := tr.RecordRoundWin(SlotBlack)
	if over {
		t.Fatal("series over after one win of best-of-three")
	}
	tr.NextRound()

	over, winner := tr.RecordRoundWin(SlotBlack)
	if !over || winner != SlotBlack {
		t.Fatalf("over = %v winner = %q, want clinch by black", over, winner)
	}
}

func TestSeriesDrawWhenRoundsExhausted(t *testing.T) {
	// Best of 2: one win each leaves nobody at winsNeeded (2).
	tr := NewTournament(2)

	over, _ := tr.RecordRoundWin(SlotBlack)
	if over {
		t.Fatal("series over after round one")
	}
	tr.NextRound()

	over, winner := tr.RecordRoundWin(SlotWhite)
	if !over {
		t.Fatal("series should end when all rounds are played")
	}
	if winner != "" {
		t.Fatalf("winner = %q, want draw", winner)
	}
}

func TestRoundOpenerAlternates(t *testing.T) {
	tr := NewTournament(5)
	if tr.StartingSlot() != SlotBlack {
		t.Fatal("round 1 should open with black")
	}
	if opener := tr.NextRound(); opener != SlotWhite {
		t.Fatalf("round 2 opener = %q, want white", opener)
	}
	if opener := tr.NextRound(); opener != SlotBlack {
		t.Fatalf("round 3 opener = %q, want black", opener)
	}
}

func TestMarkReadyDeduplicates(t *testing.T) {
	tr := NewTournament(3)
	tr.RecordRoundWin(SlotBlack)
	tr.NextRound()

	if tr.MarkReady(SlotBlack) {
		t.Fatal("one ready signal should not start the round")
	}
	if tr.MarkReady(SlotBlack) {
		t.Fatal("duplicate ready from the same slot should not start the round")
	}
	if !tr.MarkReady(SlotWhite) {
		t.Fatal("both slots ready should start the round")
	}
	if tr.MarkReady(SlotBlack) {
		t.Fatal("ready after the round started should be ignored")
	}
}
