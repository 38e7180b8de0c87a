package game

// Tournament tracks best-of-N series state nested in a session. Guarded by
// the owning session's lock.
type Tournament struct {
	TotalRounds int
	RoundNumber int
	Score       map[Slot]int
	Ready       map[Slot]bool

	// AwaitingReady is set between rounds; moves are rejected until both
	// seats have signalled ready.
	AwaitingReady bool
}

func NewTournament(totalRounds int) *Tournament {
	return &Tournament{
		TotalRounds: totalRounds,
		RoundNumber: 1,
		Score:       map[Slot]int{SlotBlack: 0, SlotWhite: 0},
		Ready:       make(map[Slot]bool),
	}
}

// WinsNeeded is the score that clinches the series.
func (t *Tournament) WinsNeeded() int {
	return t.TotalRounds/2 + 1
}

// RecordRoundWin bumps the winner's score and reports whether the series is
// decided: seriesOver is true once a slot clinches or all rounds are played,
// and seriesWinner is "" when the series ends level.
func (t *Tournament) RecordRoundWin(winner Slot) (seriesOver bool, seriesWinner Slot) {
	t.Score[winner]++
	if t.Score[winner] >= t.WinsNeeded() {
		return true, winner
	}
	if t.RoundNumber >= t.TotalRounds {
		return true, ""
	}
	return false, ""
}

// NextRound advances the round counter, clears the ready set, and returns
// the slot that opens the new round. White opens even rounds, black odd.
func (t *Tournament) NextRound() Slot {
	t.RoundNumber++
	t.Ready = make(map[Slot]bool)
	t.AwaitingReady = true
	return t.StartingSlot()
}

// StartingSlot returns the opener for the current round.
func (t *Tournament) StartingSlot() Slot {
	if t.RoundNumber%2 == 0 {
		return SlotWhite
	}
	return SlotBlack
}

// MarkReady records that slot is ready for the next round and reports
// whether both seats have now signalled. Duplicate signals are absorbed,
// and signals outside the between-rounds window are ignored so a stray
// ready cannot restart a round already in play.
func (t *Tournament) MarkReady(slot Slot) bool {
	if !t.AwaitingReady {
		return false
	}
	t.Ready[slot] = true
	if t.Ready[SlotBlack] && t.Ready[SlotWhite] {
		t.AwaitingReady = false
		return true
	}
	return false
}

// TournamentState is the wire form of series progress.
type TournamentState struct {
	TotalRounds int          `json:"totalRounds"`
	RoundNumber int          `json:"roundNumber"`
	Score       map[Slot]int `json:"score"`
}

func (t *Tournament) state() *TournamentState {
	return &TournamentState{
		TotalRounds: t.TotalRounds,
		RoundNumber: t.RoundNumber,
		Score:       map[Slot]int{SlotBlack: t.Score[SlotBlack], SlotWhite: t.Score[SlotWhite]},
	}
}
