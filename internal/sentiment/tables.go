package sentiment

// Theme maps a theme name to the phrases that trigger it. Triggers are
// matched by substring against normalized review text.
type Theme struct {
	Name     string
	Triggers []string
}

// Tables is the keyword configuration driving synthesis. Declaration order
// of the theme lists breaks count ties.
type Tables struct {
	PositiveThemes []Theme
	NegativeThemes []Theme
	StopWords      map[string]struct{}
	// Recommendations maps a pain-point theme to a template taking the
	// mention count.
	Recommendations map[string]string
	// GenericRecommendation takes the theme name and the mention count.
	GenericRecommendation string
	// PhraseNudge takes the phrase and its count.
	PhraseNudge string
}

var defaultStopWords = []string{
	"the", "and", "for", "this", "that", "with", "have", "has", "are", "was", "were", "from", "they", "them", "you",
	"your", "its", "too", "can", "not", "but", "game", "games", "just", "very", "into", "about", "after", "before",
	"been", "will", "would", "could", "should", "really", "there", "their", "more", "some", "when", "while", "where",
	"what", "than", "then", "out", "all", "any", "our", "had", "did", "does", "much", "many", "still", "also", "only",
}

// DefaultTables returns the built-in theme, stop-word and recommendation tables.
func DefaultTables() Tables {
	stop := make(map[string]struct{}, len(defaultStopWords))
	for _, w := range defaultStopWords {
		stop[w] = struct{}{}
	}
	return Tables{
		PositiveThemes: []Theme{
			{Name: "performance", Triggers: []string{"optimized", "smooth", "stable", "fps", "performance"}},
			{Name: "gameplay", Triggers: []string{"fun", "addictive", "combat", "mechanics", "gameplay"}},
			{Name: "content", Triggers: []string{"content", "variety", "replayable", "quests", "missions"}},
			{Name: "visuals", Triggers: []string{"graphics", "visuals", "art", "beautiful", "atmosphere"}},
			{Name: "value", Triggers: []string{"worth", "price", "value", "sale", "cheap"}},
			{Name: "devSupport", Triggers: []string{"update", "patch", "devs", "developer", "improved"}},
		},
		NegativeThemes: []Theme{
			{Name: "bugs", Triggers: []string{"bug", "broken", "crash", "glitch", "issue"}},
			{Name: "performance", Triggers: []string{"lag", "stutter", "optimization", "fps drops", "unplayable"}},
			{Name: "balance", Triggers: []string{"balance", "nerf", "op", "matchmaking", "fair"}},
			{Name: "monetization", Triggers: []string{"microtransaction", "pay to win", "dlc", "cash grab", "expensive"}},
			{Name: "content", Triggers: []string{"repetitive", "grind", "empty", "short", "lacking"}},
			{Name: "online", Triggers: []string{"server", "disconnect", "queue", "latency", "cheater"}},
		},
		StopWords: stop,
		Recommendations: map[string]string{
			"bugs":         "Prioritize bug fixing and crash stabilization (%d mentions).",
			"performance":  "Improve optimization (stutter/fps stability) (%d mentions).",
			"online":       "Improve servers, matchmaking reliability, and anti-cheat (%d mentions).",
			"content":      "Add variety or reduce repetitive/grindy sections (%d mentions).",
			"monetization": "Revisit pricing/monetization perception (%d mentions).",
		},
		GenericRecommendation: "Address %s concerns (%d mentions).",
		PhraseNudge:           "Investigate recurring term %q (%d reviews).",
	}
}
