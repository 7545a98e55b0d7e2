package hermes

import (
	"encoding/json"
	"strings"
)

// Rhasspy's own JSON shape for intents, kept alongside the Hermes wire
// shape because the HTTP/WebSocket surface speaks both.

type RhasspyEntity struct {
	Entity   string `json:"entity"`
	Value    any    `json:"value"`
	RawValue string `json:"raw_value"`
}

type RhasspyIntent struct {
	Intent struct {
		Name       string  `json:"name"`
		Confidence float64 `json:"confidence"`
	} `json:"intent"`
	Entities []RhasspyEntity `json:"entities"`
	Slots    map[string]any  `json:"slots"`
	Text     string          `json:"text"`
	RawText  string          `json:"raw_text"`
	// SpeechConfidence is only set when the intent came from a
	// transcription rather than posted text.
	SpeechConfidence float64 `json:"speech_confidence,omitempty"`
}

func (m *NluIntent) RhasspyDict() RhasspyIntent {
	out := RhasspyIntent{
		Entities: []RhasspyEntity{},
		Slots:    map[string]any{},
		Text:     m.Input,
		RawText:  m.Input,
	}
	out.Intent.Name = m.Intent.IntentName
	out.Intent.Confidence = m.Intent.ConfidenceScore
	for _, s := range m.Slots {
		var v any
		if err := json.Unmarshal(s.Value, &v); err != nil {
			v = string(s.Value)
		}
		out.Entities = append(out.Entities, RhasspyEntity{
			Entity:   s.Entity,
			Value:    v,
			RawValue: s.RawValue,
		})
		out.Slots[s.SlotName] = v
	}
	return out
}

// RhasspyPronunciation is Rhasspy's lookup result for one word.
type RhasspyPronunciation struct {
	InDictionary   bool     `json:"in_dictionary"`
	Pronunciations []string `json:"pronunciations"`
}

// RhasspyDict flattens the pronunciations for word. A word is in the
// dictionary when at least one pronunciation was not guessed.
func (m *Phonemes) RhasspyDict(word string) RhasspyPronunciation {
	out := RhasspyPronunciation{Pronunciations: []string{}}
	for _, g := range m.WordPhonemes[word] {
		if !g.Guessed {
			out.InDictionary = true
		}
		out.Pronunciations = append(out.Pronunciations, strings.Join(g.Phonemes, " "))
	}
	return out
}

func (m *IntentNotRecognized) RhasspyDict() RhasspyIntent {
	return RhasspyIntent{
		Entities: []RhasspyEntity{},
		Slots:    map[string]any{},
		RawText:  m.Input,
	}
}
