package aura

// envelope is used for initial JSON parsing to determine the frame type
// before unmarshaling into the specific frame struct.
type envelope struct {
	Type string `json:"type"`
}

// Inbound frames. Field names and the type discriminators are the relay wire
// contract shared with the origin conversation service. A "pong" frame also
// arrives on this channel; it carries no payload and is consumed without a
// struct of its own.

// Greeting is sent by the origin once when a call starts, before any user
// input. Audio, when present, is base64-encoded PCM16.
type Greeting struct {
	Type        string `json:"type"` // Always "greeting"
	Text        string `json:"text"`
	AudioBase64 string `json:"audio,omitempty"`
}

// UserTranscript is a live transcript update of the user's own speech.
type UserTranscript struct {
	Type string `json:"type"` // Always "user_transcript"
	Text string `json:"text"`
}

// AIChunk carries incremental assistant text. Multiple chunks stream in for
// a single response, terminated by an AIComplete frame.
type AIChunk struct {
	Type string `json:"type"` // Always "ai_chunk"
	Text string `json:"text"`
}

// AIComplete carries the final assistant message text.
type AIComplete struct {
	Type string `json:"type"` // Always "ai_complete"
	Text string `json:"text"`
}

// AIAudio carries assistant speech as base64-encoded PCM16 with its duration
// in seconds.
type AIAudio struct {
	Type        string  `json:"type"` // Always "ai_audio"
	AudioBase64 string  `json:"audio"`
	Duration    float64 `json:"duration,omitempty"`
}

// ErrorFrame surfaces an origin-side error to the client. It does not by
// itself close the connection.
type ErrorFrame struct {
	Type    string `json:"type"` // Always "error"
	Message string `json:"message"`
}

// Outbound frames.

type textFrame struct {
	Type string `json:"type"` // Always "text"
	Text string `json:"text"`
}

type endCallFrame struct {
	Type string `json:"type"` // Always "end_call"
}

type pingFrame struct {
	Type string `json:"type"` // Always "ping"
}

// Status is the observable connection status of a session.
type Status string

const (
	// StatusIdle means connected and waiting (or not yet started).
	StatusIdle Status = "idle"
	// StatusConnecting means a connection attempt is in flight.
	StatusConnecting Status = "connecting"
	// StatusListening means connected with the audio pipeline running.
	StatusListening Status = "listening"
	// StatusError means the last connection attempt or connection failed.
	StatusError Status = "error"
)

// StatusEvent is emitted on every session state transition.
type StatusEvent struct {
	Status    Status
	Connected bool
	Err       string // Human-readable cause when Status is StatusError
}

// Message is a completed assistant message surfaced to the application,
// produced from greeting and ai_complete frames.
type Message struct {
	Content string
	PCM     []byte // Decoded greeting audio, if the frame carried any
}

// AssistantAudio is decoded assistant speech ready for playback.
type AssistantAudio struct {
	PCM      []byte
	Duration float64 // Seconds, as reported by the origin; 0 for raw frames
}
