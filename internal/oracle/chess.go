package oracle

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"

	"github.com/park285/cheese-trainer/internal/notation"
)

// Chess implements Oracle with github.com/corentings/chess/v2.
type Chess struct {
	bookOnce sync.Once
	book     *opening.BookECO
}

func New() *Chess { return &Chess{} }

var _ Oracle = (*Chess)(nil)

func (c *Chess) Start(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" || fen == "startpos" {
		fen = StartFEN
	}
	game, err := gameAt(fen)
	if err != nil {
		return nil, err
	}
	return &Position{fen: game.FEN(), terminal: game.Outcome() != nchess.NoOutcome}, nil
}

func (c *Chess) LegalMoves(pos *Position) []LegalMove {
	if pos == nil || pos.terminal {
		return nil
	}
	game, err := gameAt(pos.fen)
	if err != nil {
		return nil
	}
	before := game.Position()
	uci := nchess.UCINotation{}
	san := nchess.AlgebraicNotation{}
	valid := game.ValidMoves()
	out := make([]LegalMove, 0, len(valid))
	for _, vm := range valid {
		mv, derr := uci.Decode(before, vm.String())
		if derr != nil {
			continue
		}
		lm := LegalMove{
			From:     mv.S1().String(),
			To:       mv.S2().String(),
			Notation: san.Encode(before, mv),
		}
		if mv.Promo() != nchess.NoPieceType {
			lm.Promotion = strings.ToLower(mv.Promo().String())
			lm.Flags = append(lm.Flags, FlagPromotion)
		}
		if mv.HasTag(nchess.Capture) {
			lm.Flags = append(lm.Flags, FlagCapture)
		}
		if mv.HasTag(nchess.EnPassant) {
			lm.Flags = append(lm.Flags, FlagEnPassant)
		}
		if mv.HasTag(nchess.KingSideCastle) || mv.HasTag(nchess.QueenSideCastle) {
			lm.Flags = append(lm.Flags, FlagCastle)
		}
		if mv.HasTag(nchess.Check) {
			lm.Flags = append(lm.Flags, FlagCheck)
		}
		out = append(out, lm)
	}
	return out
}

func (c *Chess) ApplyMove(pos *Position, req MoveRequest) (*Position, string, bool) {
	if pos == nil || pos.terminal {
		return nil, "", false
	}
	game, err := gameAt(pos.fen)
	if err != nil {
		return nil, "", false
	}
	before := game.Position()
	mv, err := nchess.UCINotation{}.Decode(before, req.UCI())
	if err != nil {
		return nil, "", false
	}
	return advance(pos, game, before, mv)
}

func (c *Chess) ApplyNotation(pos *Position, san string) (*Position, string, bool) {
	if pos == nil || pos.terminal {
		return nil, "", false
	}
	text := strings.TrimRight(strings.TrimSpace(san), "!?")
	if text == "" {
		return nil, "", false
	}
	game, err := gameAt(pos.fen)
	if err != nil {
		return nil, "", false
	}
	before := game.Position()
	mv, err := decodeSAN(before, text)
	if err != nil {
		return nil, "", false
	}
	return advance(pos, game, before, mv)
}

var coordinateMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// decodeSAN reads coordinate tokens ("g1f3") as UCI, anything else as SAN
// with or without check marks. The SAN decoder would take "g1f3" for a
// pawn move to f3.
func decodeSAN(pos *nchess.Position, text string) (*nchess.Move, error) {
	uci := nchess.UCINotation{}
	if lower := strings.ToLower(text); coordinateMove.MatchString(lower) {
		return uci.Decode(pos, lower)
	}
	alg := nchess.AlgebraicNotation{}
	if mv, err := alg.Decode(pos, text); err == nil {
		return mv, nil
	}
	trimmed := strings.TrimRight(text, "+#")
	if trimmed == text {
		return nil, fmt.Errorf("%w: %q", ErrIllegalNotation, text)
	}
	return alg.Decode(pos, trimmed)
}

func advance(pos *Position, game *nchess.Game, before *nchess.Position, mv *nchess.Move) (*Position, string, bool) {
	if err := game.Move(mv, nil); err != nil {
		return nil, "", false
	}
	san := nchess.AlgebraicNotation{}.Encode(before, mv)
	next := &Position{
		fen:      game.FEN(),
		parent:   pos,
		san:      san,
		ply:      pos.ply + 1,
		terminal: game.Outcome() != nchess.NoOutcome,
	}
	return next, san, true
}

func (c *Chess) LoadNotationSequence(fen, text string) (*Position, []string, error) {
	pos, err := c.Start(fen)
	if err != nil {
		return nil, nil, err
	}
	tokens := notation.Normalize(text, 0)
	if len(tokens) == 0 {
		return nil, nil, ErrEmptyNotation
	}
	sans := make([]string, 0, len(tokens))
	for i, tok := range tokens {
		next, san, ok := c.ApplyNotation(pos, tok)
		if !ok {
			return nil, nil, fmt.Errorf("%w: ply %d %q", ErrIllegalNotation, i+1, tok)
		}
		pos = next
		sans = append(sans, san)
	}
	return pos, sans, nil
}

func (c *Chess) BoardToNotation(pos *Position) string { return pos.FEN() }

func (c *Chess) Undo(pos *Position) *Position {
	if pos == nil || pos.parent == nil {
		return pos
	}
	return pos.parent
}

// OpeningLabel names the opening of a line played from the standard start.
func (c *Chess) OpeningLabel(fen string, sans []string) (string, string) {
	if len(sans) == 0 {
		return "", ""
	}
	if f := strings.TrimSpace(fen); f != "" && f != StartFEN && f != "startpos" {
		return "", ""
	}
	c.bookOnce.Do(func() { c.book = opening.NewBookECO() })
	if c.book == nil {
		return "", ""
	}
	game := nchess.NewGame()
	for _, san := range sans {
		if err := game.PushNotationMove(san, nchess.AlgebraicNotation{}, nil); err != nil {
			break
		}
	}
	if eco := c.book.Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

func gameAt(fen string) (*nchess.Game, error) {
	opt, err := nchess.FEN(fen)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return nchess.NewGame(opt), nil
}
