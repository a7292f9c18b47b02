package gateway

// Frame types understood from clients.
const (
	typeCreateRoom = "create_room"
	typeJoinRoom   = "join_room"
	typeFlipToken  = "flip_token"
)

// Frame types sent to clients.
const (
	typeRoomCreated      = "room_created"
	typePlayerAssignment = "player_assignment"
	typeGameStart        = "game_start"
	typeTokenFlipped     = "token_flipped"
	typeMatchFound       = "match_found"
	typeNoMatch          = "no_match"
	typeGameOver         = "game_over"
	typeOpponentLeft     = "opponent_left"
	typeErrorMessage     = "error_message"
)

type clientFrame struct {
	Type       string `json:"type"`
	Room       string `json:"room,omitempty"`
	TokenIndex *int   `json:"tokenIndex,omitempty"`
}

// serverFrame is the single outbound shape; unset fields are omitted so each
// frame type carries only its own payload.
type serverFrame struct {
	Type         string   `json:"type"`
	Room         string   `json:"room,omitempty"`
	Player       *int     `json:"player,omitempty"`
	Board        []string `json:"board,omitempty"`
	TokenIndex   *int     `json:"tokenIndex,omitempty"`
	Indices      []int    `json:"indices,omitempty"`
	Scores       []int    `json:"scores,omitempty"`
	MatchesFound *int     `json:"matchesFound,omitempty"`
	NextPlayer   *int     `json:"nextPlayer,omitempty"`
	Message      string   `json:"message,omitempty"`
}

func intp(n int) *int { return &n }
