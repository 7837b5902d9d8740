package voicecall

// Client message types.
const (
	// TypeMessage reports a rendered chat message. Assistant messages with
	// Autoplay set are spoken once.
	TypeMessage = "message"

	// TypeForget drops a message that left the conversation.
	TypeForget = "forget"

	// TypeSay toggles manual playback of Text.
	TypeSay = "say"

	// TypeStop stops playback. The server also sends it to stop a clip.
	TypeStop = "stop"

	// TypeStarted, TypeEnded and TypeError acknowledge a play request.
	TypeStarted = "started"
	TypeEnded   = "ended"
	TypeError   = "error"
)

// Server message types.
const (
	// TypeReady is sent once after the connection is accepted.
	TypeReady = "ready"

	// TypePlay announces the binary audio frame that follows it.
	TypePlay = "play"

	// TypeSFX asks the client to play a cue sound.
	TypeSFX = "sfx"

	// TypeState reports a playback state change.
	TypeState = "state"
)

// Playback error codes a client reports in [ClientMessage.Error].
const (
	ErrCodeBlocked = "blocked"
	ErrCodeDecode  = "decode"
)

// ClientMessage is a JSON control message sent by the client.
type ClientMessage struct {
	Type     string `json:"type"`
	ID       string `json:"id,omitempty"`
	Role     string `json:"role,omitempty"`
	Text     string `json:"text,omitempty"`
	Autoplay bool   `json:"autoplay,omitempty"`
	Playback uint64 `json:"playback,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ServerMessage is a JSON control message sent by the server.
type ServerMessage struct {
	Type        string `json:"type"`
	Playback    uint64 `json:"playback,omitempty"`
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Bytes       int    `json:"bytes,omitempty"`
	Cue         string `json:"cue,omitempty"`
	State       string `json:"state,omitempty"`
	Provider    string `json:"provider,omitempty"`
	Error       string `json:"error,omitempty"`
	Character   string `json:"character,omitempty"`
	Voice       string `json:"voice,omitempty"`
}
