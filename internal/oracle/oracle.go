// Package oracle wraps the chess rules library behind the small surface the
// trainer needs: legality, SAN generation and FEN round trips.
package oracle

import (
	"errors"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

const (
	White = "white"
	Black = "black"
)

var (
	ErrInvalidFEN      = errors.New("invalid FEN")
	ErrEmptyNotation   = errors.New("no moves in notation")
	ErrIllegalNotation = errors.New("illegal move in notation")
)

// MoveRequest is a board interaction: from/to squares plus optional promotion
// piece letter (q, r, b, n).
type MoveRequest struct {
	From      string
	To        string
	Promotion string
}

// UCI renders the request as "e7e8q".
func (r MoveRequest) UCI() string {
	return strings.ToLower(strings.TrimSpace(r.From) + strings.TrimSpace(r.To) + strings.TrimSpace(r.Promotion))
}

// ParseMoveRequest accepts "e2e4", "e2-e4" or "e7e8q".
func ParseMoveRequest(s string) (MoveRequest, bool) {
	s = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", ""))
	if len(s) != 4 && len(s) != 5 {
		return MoveRequest{}, false
	}
	req := MoveRequest{From: s[0:2], To: s[2:4]}
	if len(s) == 5 {
		req.Promotion = s[4:]
	}
	return req, true
}

// Move flags reported by LegalMoves.
const (
	FlagCapture   = "capture"
	FlagCheck     = "check"
	FlagCastle    = "castle"
	FlagEnPassant = "en_passant"
	FlagPromotion = "promotion"
)

type LegalMove struct {
	From      string
	To        string
	Notation  string
	Promotion string
	Flags     []string
}

// Oracle is the trusted rules primitive used by the sequencer, merger and
// authoring pipeline.
type Oracle interface {
	Start(fen string) (*Position, error)
	LegalMoves(pos *Position) []LegalMove
	ApplyMove(pos *Position, req MoveRequest) (*Position, string, bool)
	ApplyNotation(pos *Position, san string) (*Position, string, bool)
	LoadNotationSequence(fen, text string) (*Position, []string, error)
	BoardToNotation(pos *Position) string
	Undo(pos *Position) *Position
	OpeningLabel(fen string, sans []string) (code, title string)
}

// Position is an immutable board state. Positions produced by applying moves
// keep a link to their parent so Undo never recomputes.
type Position struct {
	fen      string
	parent   *Position
	san      string
	ply      int
	terminal bool
}

func (p *Position) FEN() string {
	if p == nil {
		return ""
	}
	return p.fen
}

// Turn returns "white" or "black".
func (p *Position) Turn() string {
	fields := strings.Fields(p.FEN())
	if len(fields) > 1 && fields[1] == "b" {
		return Black
	}
	return White
}

// FullMove is the FEN full-move counter.
func (p *Position) FullMove() int {
	fields := strings.Fields(p.FEN())
	if len(fields) < 6 {
		return 1
	}
	n, err := strconv.Atoi(fields[5])
	if err != nil || n < 1 {
		return 1
	}
	return n
}

// Ply counts moves applied since the position chain was started.
func (p *Position) Ply() int {
	if p == nil {
		return 0
	}
	return p.ply
}

// LastSAN is the notation of the move that produced p.
func (p *Position) LastSAN() string {
	if p == nil {
		return ""
	}
	return p.san
}

// Terminal reports checkmate, stalemate or an automatic draw.
func (p *Position) Terminal() bool {
	return p != nil && p.terminal
}

// History returns the SAN moves from the chain root to p.
func (p *Position) History() []string {
	if p == nil {
		return nil
	}
	out := make([]string, p.ply)
	for cur := p; cur != nil && cur.parent != nil; cur = cur.parent {
		out[cur.ply-1] = cur.san
	}
	return out
}

// SameBoard compares two positions by FEN.
func SameBoard(a, b *Position) bool {
	return a.FEN() == b.FEN()
}
