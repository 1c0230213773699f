package summarize

// Profile holds the prompt material for one summary Type.
type Profile struct {
	Type         Type
	Name         string
	SystemPrompt string
	// Instruction opens the user message.
	Instruction string
	// Sizes describes each Length in the unit that fits the Type.
	Sizes map[Length]string
}

// GetProfile returns the profile for t. Unknown types get key points.
func GetProfile(t Type) Profile {
	switch t {
	case TLDR:
		return tldrProfile
	case Teaser:
		return teaserProfile
	case Headline:
		return headlineProfile
	default:
		return keyPointsProfile
	}
}

// Size returns the length guidance for l, falling back to medium.
func (p Profile) Size(l Length) string {
	if s, ok := p.Sizes[l]; ok {
		return s
	}
	return p.Sizes[Medium]
}

const baseSystem = "You summarize web pages for a reader who has not seen them. Use only the provided page text. Do not add facts, opinions or links that are not in the text. Ignore navigation, cookie notices and other page chrome if any slipped through."

var keyPointsProfile = Profile{
	Type:         KeyPoints,
	Name:         "Key points",
	SystemPrompt: baseSystem + " Write the key points as a bulleted list, most important first, one idea per bullet.",
	Instruction:  "List the key points of the page text below.",
	Sizes: map[Length]string{
		Short:  "exactly 3 bullets",
		Medium: "exactly 5 bullets",
		Long:   "exactly 7 bullets",
	},
}

var tldrProfile = Profile{
	Type:         TLDR,
	Name:         "TL;DR",
	SystemPrompt: baseSystem + " Write a short, neutral overview in prose.",
	Instruction:  "Give a quick overview of the page text below for a busy reader.",
	Sizes: map[Length]string{
		Short:  "1 sentence",
		Medium: "3 sentences",
		Long:   "5 sentences",
	},
}

var teaserProfile = Profile{
	Type:         Teaser,
	Name:         "Teaser",
	SystemPrompt: baseSystem + " Write an inviting teaser that makes the reader want to read the page, without giving away its conclusion and without clickbait.",
	Instruction:  "Write a teaser for the page text below.",
	Sizes: map[Length]string{
		Short:  "1 sentence",
		Medium: "3 sentences",
		Long:   "5 sentences",
	},
}

var headlineProfile = Profile{
	Type:         Headline,
	Name:         "Headline",
	SystemPrompt: baseSystem + " Write a single headline that captures the main point. No quotes around it and no trailing period.",
	Instruction:  "Write a headline for the page text below.",
	Sizes: map[Length]string{
		Short:  "at most 12 words",
		Medium: "at most 17 words",
		Long:   "at most 22 words",
	},
}
