package domain

// Symbols assigned to the two players of a match.
const (
	SymbolX = "X"
	SymbolO = "O"
)

// BoardSize is the edge length of the tic-tac-toe grid.
const BoardSize = 3

// Board is the 3x3 grid, row-major. Empty cells are "".
type Board [BoardSize * BoardSize]string

// NewBoard returns an empty board.
func NewBoard() Board {
	return Board{}
}

// Apply places symbol at cell (0-8). It fails with ErrIllegalMove when the
// cell index is out of range or the cell is already filled.
func (b *Board) Apply(cell int, symbol string) error {
	if cell < 0 || cell >= len(b) {
		return ErrIllegalMove
	}
	if b[cell] != "" {
		return ErrIllegalMove
	}
	b[cell] = symbol
	return nil
}

// winningLines are the 8 cell triples that decide a round.
var winningLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

// Winner returns the symbol holding a complete line, or "" if no line is
// complete yet.
func (b *Board) Winner() string {
	for _, line := range winningLines {
		s := b[line[0]]
		if s != "" && s == b[line[1]] && s == b[line[2]] {
			return s
		}
	}
	return ""
}

// Full reports whether every cell is filled.
func (b *Board) Full() bool {
	for _, cell := range b {
		if cell == "" {
			return false
		}
	}
	return true
}

// RoundOutcome classifies the state of a round after a move.
type RoundOutcome int

const (
	RoundOngoing RoundOutcome = iota
	RoundWon
	RoundDrawn
)

// Evaluate classifies the board: a completed line wins the round for its
// symbol, a full board with no line is a draw, anything else is ongoing.
func (b *Board) Evaluate() (RoundOutcome, string) {
	if s := b.Winner(); s != "" {
		return RoundWon, s
	}
	if b.Full() {
		return RoundDrawn, ""
	}
	return RoundOngoing, ""
}
