package announce

import (
	"fmt"
	"strings"
)

// Persona describes the on-air character whose voice the prompt asks for.
type Persona struct {
	// Name is the DJ's name, e.g. "Ava".
	Name string

	// Station is the station name, e.g. "WF4S Haulin' Radio".
	Station string

	// Setting is a short description of the station appended to the
	// introduction, e.g. "a space trucker radio station in the Star Citizen
	// universe".
	Setting string

	// Traits are rendered as the PERSONALITY bullet list.
	Traits []string

	// NewsTopic names the subject of news segments, e.g. "Star Citizen".
	NewsTopic string
}

// DefaultPersona returns the stock station persona.
func DefaultPersona() Persona {
	return Persona{
		Name:    "Ava",
		Station: "WF4S Haulin' Radio",
		Setting: "a space trucker radio station in the Star Citizen universe",
		Traits: []string{
			"Sarcastic, flirty, and funny",
			"Uses space puns and trucker slang",
			`Can use "damn" and "hell" appropriately`,
			"Keep it short (1-2 sentences max)",
			"Sound natural and conversational",
		},
		NewsTopic: "Star Citizen",
	}
}

// withDefaults fills empty fields from DefaultPersona.
func (p Persona) withDefaults() Persona {
	def := DefaultPersona()
	if p.Name == "" {
		p.Name = def.Name
	}
	if p.Station == "" {
		p.Station = def.Station
	}
	if p.Setting == "" && p.Station == def.Station {
		p.Setting = def.Setting
	}
	if len(p.Traits) == 0 {
		p.Traits = def.Traits
	}
	if p.NewsTopic == "" {
		p.NewsTopic = def.NewsTopic
	}
	return p
}

// task returns the TASK line for intent.
func (p Persona) task(intent Intent, subj Subject) string {
	switch intent {
	case IntentNews:
		return fmt.Sprintf("You're about to share %s news", p.NewsTopic)
	case IntentTime:
		return "You're announcing the current Zulu time"
	default:
		if subj.Author == "" {
			return fmt.Sprintf("You're introducing the next song: %q", subj.Title)
		}
		return fmt.Sprintf("You're introducing the next song: %q by %s", subj.Title, subj.Author)
	}
}

// BuildPrompt renders the single user message sent to the model: persona,
// task and the recent announcements the model must not repeat.
func BuildPrompt(p Persona, intent Intent, subj Subject, recent []string) string {
	p = p.withDefaults()

	var b strings.Builder
	fmt.Fprintf(&b, "You are %s, the AI DJ for %s", p.Name, p.Station)
	if p.Setting != "" {
		fmt.Fprintf(&b, ", %s", p.Setting)
	}
	b.WriteString(".\n\nPERSONALITY:\n")
	for _, t := range p.Traits {
		fmt.Fprintf(&b, "- %s\n", t)
	}
	fmt.Fprintf(&b, "\nTASK: %s\n", p.task(intent.normalize(), subj))
	if len(recent) > 0 {
		b.WriteString("\nIMPORTANT: DO NOT repeat these phrases from your recent announcements:\n")
		for _, r := range recent {
			b.WriteString(r)
			b.WriteByte('\n')
		}
	}
	b.WriteString("\nGenerate a fresh, unique announcement:")
	return b.String()
}
