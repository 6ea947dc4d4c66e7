package trainerdto

// Command types accepted on the session socket.
const (
	CmdList        = "list"
	CmdLoad        = "load"
	CmdRandom      = "random"
	CmdMove        = "move"
	CmdGoto        = "goto"
	CmdKey         = "key"
	CmdResume      = "resume"
	CmdAuthorStart = "author_start"
	CmdAuthorClear = "author_clear"
	CmdAuthorUndo  = "author_undo"
	CmdSubmit      = "submit"
	CmdPromote     = "promote"
	CmdReload      = "reload"
)

// Event kinds raised outside the sequencer.
const (
	EventExercisesUpdated = "exercises_updated"
	EventExerciseMirrored = "exercise_mirrored"
)

type Command struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq,omitempty"`

	ExerciseID string `json:"exerciseId,omitempty"`

	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Promotion string `json:"promotion,omitempty"`
	Index     int    `json:"index,omitempty"`
	Key       string `json:"key,omitempty"`

	FEN    string `json:"fen,omitempty"`
	PGN    string `json:"pgn,omitempty"`
	Name   string `json:"name,omitempty"`
	Color  string `json:"color,omitempty"`
	Public bool   `json:"public,omitempty"`

	Search string `json:"search,omitempty"`
	Sort   string `json:"sort,omitempty"`
	Source string `json:"source,omitempty"`
}

type BoardState struct {
	Mode             string   `json:"mode"`
	ExerciseID       string   `json:"exerciseId,omitempty"`
	FEN              string   `json:"fen"`
	Turn             string   `json:"turn"`
	CurrentMoveIndex int      `json:"currentMoveIndex"`
	LiveMoveIndex    int      `json:"liveMoveIndex"`
	Played           []string `json:"played"`
	Mistakes         []int    `json:"mistakes"`
	Highlight        string   `json:"highlight"`
	AwaitingReply    bool     `json:"awaitingReply"`
	Completed        bool     `json:"completed"`
	Diverged         bool     `json:"diverged,omitempty"`
	// Legal lists the moves the board should allow; empty while the trainee
	// has nothing to play.
	Legal []LegalMove `json:"legal,omitempty"`
}

type LegalMove struct {
	From      string `json:"from"`
	To        string `json:"to"`
	SAN       string `json:"san"`
	Promotion string `json:"promotion,omitempty"`
}

type Reply struct {
	Type      string            `json:"type"` // always "reply"
	Seq       int64             `json:"seq,omitempty"`
	OK        bool              `json:"ok"`
	Message   string            `json:"message,omitempty"`
	Error     *Error            `json:"error,omitempty"`
	State     *BoardState       `json:"state,omitempty"`
	Exercise  *ExerciseSummary  `json:"exercise,omitempty"`
	Exercises []ExerciseSummary `json:"exercises,omitempty"`
}

type Event struct {
	Type    string      `json:"type"` // always "event"
	Kind    string      `json:"kind"`
	Message string      `json:"message,omitempty"`
	State   *BoardState `json:"state,omitempty"`
}
