// Package announce produces the spoken-word text of radio announcements.
//
// A [Generator] asks a language model for a short in-character line about the
// next track, a news segment or a time check. When the model is unavailable,
// slow, empty or repeats itself, a line from a static [Phrasebook] is used
// instead, so Generate always returns something speakable and never an error.
// Successful model output is remembered in a per-session [History] that is fed
// back into the prompt to keep announcements from repeating.
package announce

// Intent is the kind of announcement being produced.
type Intent string

const (
	// IntentTrack introduces the track that is about to play.
	IntentTrack Intent = "track"

	// IntentNews leads into a news segment.
	IntentNews Intent = "news"

	// IntentTime leads into a time check.
	IntentTime Intent = "time"
)

// Valid reports whether i is one of the known intents.
func (i Intent) Valid() bool {
	switch i {
	case IntentTrack, IntentNews, IntentTime:
		return true
	}
	return false
}

// normalize maps unknown intents to IntentTrack.
func (i Intent) normalize() Intent {
	if i.Valid() {
		return i
	}
	return IntentTrack
}

// Subject is what an announcement is about. For IntentTrack Title and Author
// describe the track; other intents only use Title, if at all.
type Subject struct {
	Title  string
	Author string
}

// Source tells whether an [Announcement] came from the model or the phrasebook.
type Source string

const (
	SourceLLM      Source = "llm"
	SourceFallback Source = "fallback"
)

// Announcement is the result of [Generator.Generate].
type Announcement struct {
	// Text is the line to speak. Never empty.
	Text string

	// Intent is the intent the text was produced for, after normalisation.
	Intent Intent

	// Source is SourceLLM for model output and SourceFallback otherwise.
	Source Source
}
