package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"voice-control/internal/bus"
	"voice-control/internal/hermes"
)

// TextToSpeech speaks the posted text and waits for playback to
// finish before answering.
func (a *API) TextToSpeech(w http.ResponseWriter, r *http.Request) {
	text, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	id := hermes.NewID()
	outbound := []bus.Message{
		{Topic: hermes.TtsSayTopic, Payload: hermes.MustMarshal(hermes.TtsSay{
			Text:   string(text),
			ID:     id,
			SiteID: a.siteID,
		})},
	}
	_, err = a.cor.PublishAndWait(r.Context(), outbound,
		[]string{hermes.TtsSayFinished},
		func(_ string, payload []byte) (any, bool) {
			var sf hermes.SayFinished
			if err := json.Unmarshal(payload, &sf); err != nil || sf.ID != id {
				return nil, false
			}
			return &sf, true
		},
		a.timeout,
	)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeText(w, string(text))
}

// PlayWav plays a posted WAV through the site's audio output. The
// request id rides in the playBytes topic and comes back in the
// playFinished payload.
func (a *API) PlayWav(w http.ResponseWriter, r *http.Request) {
	wav, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}

	id := hermes.NewID()
	outbound := []bus.Message{
		{Topic: hermes.PlayBytesTopic(a.siteID, id), Payload: wav},
	}
	_, err = a.cor.PublishAndWait(r.Context(), outbound,
		[]string{hermes.PlayFinishedTopic(a.siteID)},
		func(_ string, payload []byte) (any, bool) {
			var pf hermes.PlayFinished
			if err := json.Unmarshal(payload, &pf); err != nil || pf.ID != id {
				return nil, false
			}
			return &pf, true
		},
		a.timeout,
	)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeText(w, "OK")
}

// Lookup asks the grapheme-to-phoneme service for pronunciations of
// the posted word. ?n= bounds the number of guesses.
func (a *API) Lookup(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		a.writeError(w, err)
		return
	}
	word := strings.ToLower(strings.TrimSpace(string(body)))
	if word == "" {
		a.writeError(w, fmt.Errorf("lookup: no word to look up"))
		return
	}
	guesses := 5
	if s := r.URL.Query().Get("n"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			a.writeError(w, fmt.Errorf("lookup: bad guess count %q", s))
			return
		}
		guesses = n
	}

	id := hermes.NewID()
	outbound := []bus.Message{
		{Topic: hermes.G2pPronounce, Payload: hermes.MustMarshal(hermes.Pronounce{
			Words:      []string{word},
			ID:         id,
			SiteID:     a.siteID,
			NumGuesses: guesses,
		})},
	}
	res, err := a.cor.PublishAndWait(r.Context(), outbound,
		[]string{hermes.G2pPhonemesTopic},
		func(_ string, payload []byte) (any, bool) {
			var ph hermes.Phonemes
			if err := json.Unmarshal(payload, &ph); err != nil || ph.ID != id {
				return nil, false
			}
			return &ph, true
		},
		a.timeout,
	)
	if err != nil {
		a.writeError(w, err)
		return
	}

	ph := res.(*hermes.Phonemes)
	if r.URL.Query().Get("outputFormat") == "hermes" {
		writeJSON(w, map[string]any{"type": "phonemes", "value": ph})
		return
	}
	writeJSON(w, ph.RhasspyDict(word))
}
