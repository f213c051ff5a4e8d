package models

// TranscriptEntry is one captured caption line persisted for a session.
type TranscriptEntry struct {
	ID        string `json:"id"` // ULID
	SessionID string `json:"session_id"`
	SpeakerID string `json:"speaker_id"`
	Speaker   string `json:"speaker,omitempty"`
	Text      string `json:"text"`
	Lang      string `json:"lang,omitempty"`
	Timestamp int64  `json:"ts"` // Unix ms
}

// Summary is a generated summary of a session's transcript.
type Summary struct {
	ID        string `json:"id"` // ULID
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"` // Unix ms
}
