package hermes

import (
	"encoding/json"

	"github.com/google/uuid"
)

// JSON payload shapes for the subset of the Hermes protocol this
// server threads through the bus. Field names follow the wire format
// (camelCase), not Go convention.

func NewID() string { return uuid.NewString() }

type StartListening struct {
	SiteID            string `json:"siteId"`
	SessionID         string `json:"sessionId"`
	StopOnSilence     bool   `json:"stopOnSilence"`
	SendAudioCaptured bool   `json:"sendAudioCaptured"`
}

type StopListening struct {
	SiteID    string `json:"siteId"`
	SessionID string `json:"sessionId"`
}

type TextCaptured struct {
	Text       string  `json:"text"`
	Likelihood float64 `json:"likelihood"`
	Seconds    float64 `json:"seconds"`
	SiteID     string  `json:"siteId"`
	SessionID  string  `json:"sessionId"`
	WakewordID string  `json:"wakewordId,omitempty"`
}

type NluQuery struct {
	Input     string `json:"input"`
	ID        string `json:"id"`
	SiteID    string `json:"siteId"`
	SessionID string `json:"sessionId,omitempty"`
}

type Intent struct {
	IntentName      string  `json:"intentName"`
	ConfidenceScore float64 `json:"confidenceScore"`
}

type Slot struct {
	Entity   string          `json:"entity"`
	SlotName string          `json:"slotName"`
	RawValue string          `json:"rawValue"`
	Value    json.RawMessage `json:"value"`
}

type NluIntent struct {
	Input     string `json:"input"`
	Intent    Intent `json:"intent"`
	Slots     []Slot `json:"slots"`
	ID        string `json:"id"`
	SiteID    string `json:"siteId"`
	SessionID string `json:"sessionId,omitempty"`
}

type IntentNotRecognized struct {
	Input  string `json:"input"`
	ID     string `json:"id"`
	SiteID string `json:"siteId"`
}

// Error is the shared shape of hermes/error/* payloads.
type Error struct {
	Error     string `json:"error"`
	Context   string `json:"context,omitempty"`
	SiteID    string `json:"siteId"`
	SessionID string `json:"sessionId,omitempty"`
}

type HotwordToggle struct {
	SiteID string `json:"siteId"`
}

// HandleToggle enables or disables downstream intent handling.
type HandleToggle struct {
	SiteID string `json:"siteId"`
}

type HotwordDetected struct {
	ModelID      string `json:"modelId"`
	ModelVersion string `json:"modelVersion,omitempty"`
	SiteID       string `json:"siteId"`
}

type TtsSay struct {
	Text   string `json:"text"`
	ID     string `json:"id"`
	SiteID string `json:"siteId"`
}

type SayFinished struct {
	ID     string `json:"id"`
	SiteID string `json:"siteId"`
}

type PlayFinished struct {
	ID     string `json:"id"`
	SiteID string `json:"siteId"`
}

type Pronounce struct {
	Words      []string `json:"words"`
	ID         string   `json:"id"`
	SiteID     string   `json:"siteId"`
	NumGuesses int      `json:"numGuesses"`
}

type Phonemes struct {
	WordPhonemes map[string][]PhonemeGuess `json:"wordPhonemes"`
	ID           string                    `json:"id"`
	SiteID       string                    `json:"siteId"`
}

type PhonemeGuess struct {
	Phonemes []string `json:"phonemes"`
	// Guessed is false for dictionary pronunciations, true for
	// grapheme-to-phoneme guesses.
	Guessed bool `json:"guessed,omitempty"`
}

// MustMarshal encodes a protocol message. Payload structs contain only
// marshalable fields, so failure here is a programming error.
func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
