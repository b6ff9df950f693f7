package frames

// typeTags maps frame types to the short tags shown in trace lines. Unknown
// types fall back to a truncated form of the type name.
var typeTags = map[Type]string{
	TypeUserStartedSpeaking: "USR-START",
	TypeUserStoppedSpeaking: "USR-STOP",
	TypeBotStartedSpeaking:  "BOT-START",
	TypeBotStoppedSpeaking:  "BOT-STOP",
	TypeTranscription:       "STT",
	TypeInterimTranscript:   "STT-PART",
	TypeLLMText:             "LLM",
	TypeText:                "TEXT",
	TypeInputAudioRaw:       "AUDIO-IN",
	TypeOutputAudioRaw:      "AUDIO-OUT",
	TypeTTSStarted:          "TTS-START",
	TypeTTSStopped:          "TTS-STOP",
	TypeLLMResponseStart:    "LLM-START",
	TypeLLMResponseEnd:      "LLM-END",
	TypeStart:               "START",
	TypeEnd:                 "END",
	TypeCancel:              "CANCEL",
	TypeTransportMessage:    "MSG",
}

// Tag returns the short display tag for the frame type.
func (t Type) Tag() string {
	if tag, ok := typeTags[t]; ok {
		return tag
	}
	name := string(t)
	if len(name) > 10 {
		name = name[:10]
	}
	return name
}
