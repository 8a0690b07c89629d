package realtime

import (
	"time"
)

// Mode is the client-declared context mode (§4.4).
type Mode string

const (
	ModeHome   Mode = "home"
	ModeSolo   Mode = "solo"
	ModeOnline Mode = "online"
	ModeQuiz   Mode = "quiz"
)

// Context is a client's declared subscription context (§4.4).
type Context struct {
	Mode       Mode
	IsSolo     bool
	IsInLobby  bool
	IsInQuiz   bool
}

// Session is the in-memory per-connection state owned by the Session
// Registry (§3 "Session").
type Session struct {
	ConnectionID string
	UserID       uint
	Username     string
	PhoneNumber  string
	Token        string
	IsAuthenticated bool

	ConnectedAt    time.Time
	LastActivityAt time.Time

	Context Context

	// lastCountdownSentAt throttles eventCountdown delivery to this client (§4.7).
	lastCountdownSentAt time.Time
}

// AnswerRecord is one entry of a participant's answer log (§3 "Quiz Round").
type AnswerRecord struct {
	QuestionID  uint `json:"questionId"`
	UserAnswer  int  `json:"userAnswer"`
	Correct     bool `json:"correct"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// PendingAnswer is a buffered, not-yet-resolved submission (§4.6 step 3).
type PendingAnswer struct {
	QuestionID uint
	Answer     int
}

