package tool

import "github.com/voxpod/voxpod/pkg/audio"

// ResultKind discriminates the Result union. Exactly one variant is
// active per result; the orchestrator's behavior is fully determined
// by the kind.
type ResultKind int

const (
	// KindSpeak synthesizes Text and delivers it.
	KindSpeak ResultKind = iota

	// KindAskUser speaks Text as a clarifying question and stores a
	// pending call; the next utterance supplies MissingParam.
	KindAskUser

	// KindStreamAudio hands Source to the music sub-state machine.
	KindStreamAudio

	// KindSilent produces no output.
	KindSilent

	// KindError speaks a fallback apology. Tool failures are results,
	// not escaped errors.
	KindError
)

// String returns the kind name.
func (k ResultKind) String() string {
	switch k {
	case KindSpeak:
		return "speak"
	case KindAskUser:
		return "ask_user"
	case KindStreamAudio:
		return "stream_audio"
	case KindSilent:
		return "silent"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Result is the tagged outcome of a tool call.
type Result struct {
	Kind ResultKind
	Text string

	// ask_user
	Tool         string
	MissingParam string
	PartialArgs  Args

	// stream_audio
	Title  string
	Source audio.FrameSource
}

// Speak returns a speak result.
func Speak(text string) *Result {
	return &Result{Kind: KindSpeak, Text: text}
}

// AskUser returns an ask_user result carrying resume state.
func AskUser(question, toolName, missingParam string, partial Args) *Result {
	return &Result{
		Kind:         KindAskUser,
		Text:         question,
		Tool:         toolName,
		MissingParam: missingParam,
		PartialArgs:  partial,
	}
}

// StreamAudio returns a stream_audio result.
func StreamAudio(title string, src audio.FrameSource) *Result {
	return &Result{Kind: KindStreamAudio, Title: title, Source: src}
}

// Silent returns a silent result.
func Silent() *Result {
	return &Result{Kind: KindSilent}
}

// Errorf returns an error result with the given text.
func Errorf(text string) *Result {
	return &Result{Kind: KindError, Text: text}
}
