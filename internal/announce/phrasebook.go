package announce

import "strings"

// Phrasebook holds the static fallback lines per intent. Lines may contain
// the placeholders {title} and {author}.
type Phrasebook map[Intent][]string

// DefaultPhrasebook returns the stock fallback lines. Every intent has at
// least two lines.
func DefaultPhrasebook() Phrasebook {
	return Phrasebook{
		IntentTrack: {
			"Next up: {title}. Let's ride!",
			"Coming at you with {title}. Buckle up!",
			"Here's {title} to keep those engines humming.",
		},
		IntentNews: {
			"Time for some Star Citizen news, space cowboys!",
			"Let's catch up on what's happening in the 'verse.",
		},
		IntentTime: {
			"Here's your Zulu time check, haulers.",
			"Time update for all you space truckers.",
		},
	}
}

// Merge returns a copy of pb where every intent present in override with a
// non-empty list replaces the corresponding list.
func (pb Phrasebook) Merge(override Phrasebook) Phrasebook {
	out := make(Phrasebook, len(pb))
	for k, v := range pb {
		out[k] = v
	}
	for k, v := range override {
		if len(v) > 0 {
			out[k] = v
		}
	}
	return out
}

// lines returns the lines for intent, using the track lines for unknown or
// missing intents.
func (pb Phrasebook) lines(intent Intent) []string {
	if l := pb[intent.normalize()]; len(l) > 0 {
		return l
	}
	if l := pb[IntentTrack]; len(l) > 0 {
		return l
	}
	return DefaultPhrasebook()[IntentTrack]
}

// render substitutes the subject into a phrase.
func render(phrase string, subj Subject) string {
	title := subj.Title
	if title == "" {
		title = "this one"
	}
	return strings.NewReplacer("{title}", title, "{author}", subj.Author).Replace(phrase)
}
