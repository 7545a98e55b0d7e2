package hermes

import "strings"

// Topic naming follows the Hermes voice-assistant protocol:
// hermes/<service>/<event>, with site- and request-scoped segments
// where the protocol embeds them in the topic itself.

const (
	AsrStartListening = "hermes/asr/startListening"
	AsrStopListening  = "hermes/asr/stopListening"
	AsrTextCaptured   = "hermes/asr/textCaptured"
	AsrToggleOn       = "hermes/asr/toggleOn"
	AsrToggleOff      = "hermes/asr/toggleOff"
	AsrErrorTopic     = "hermes/error/asr"

	NluQueryTopic          = "hermes/nlu/query"
	NluIntentNotRecognized = "hermes/nlu/intentNotRecognized"
	NluErrorTopic          = "hermes/error/nlu"

	HotwordToggleOnTopic  = "hermes/hotword/toggleOn"
	HotwordToggleOffTopic = "hermes/hotword/toggleOff"

	TtsSayTopic      = "hermes/tts/say"
	TtsSayFinished   = "hermes/tts/sayFinished"
	G2pPronounce     = "rhasspy/g2p/pronounce"
	G2pPhonemesTopic = "rhasspy/g2p/phonemes"

	HandleToggleOn  = "rhasspy/handle/toggleOn"
	HandleToggleOff = "rhasspy/handle/toggleOff"
)

// IntentTopic returns the topic an NLU intent is published on.
// intentName may be a wildcard for subscriptions.
func IntentTopic(intentName string) string {
	return "hermes/intent/" + intentName
}

// HotwordDetectedPattern matches detections from any wake word model.
const HotwordDetectedPattern = "hermes/hotword/+/detected"

// WakewordID extracts the model id from a hotword detected topic, or
// "" if the topic has a different shape.
func WakewordID(topic string) string {
	segs := strings.Split(topic, "/")
	if len(segs) == 4 && segs[0] == "hermes" && segs[1] == "hotword" && segs[3] == "detected" {
		return segs[2]
	}
	return ""
}

// AudioFrameTopic carries raw audio for one ASR session.
func AudioFrameTopic(siteID, sessionID string) string {
	return "hermes/audioServer/" + siteID + "/" + sessionID + "/audioSessionFrame"
}

// PlayBytesTopic carries a WAV to play; the request id rides in the
// topic, not the payload.
func PlayBytesTopic(siteID, requestID string) string {
	return "hermes/audioServer/" + siteID + "/playBytes/" + requestID
}

// PlayFinishedTopic is where playback completion for a site is announced.
func PlayFinishedTopic(siteID string) string {
	return "hermes/audioServer/" + siteID + "/playFinished"
}
