package moderation

// Default term lists. Deployments override them through the policy file so
// the client and server gates read one list.
var (
	// DefaultBannedTerms are matched by the Matcher after normalization.
	DefaultBannedTerms = []string{
		// French
		"merde", "connard", "connasse", "salope", "putain", "encule",
		"batard", "enfoire", "niquer", "pouffiasse", "abruti",
		// English
		"fuck", "shit", "bitch", "asshole", "bastard", "motherfucker",
		"dickhead", "wanker",
	}

	// DefaultSpamKeywords are plain substrings searched in lower-cased text.
	DefaultSpamKeywords = []string{
		"click here", "buy now", "free money", "make money fast",
		"work from home and earn", "limited time offer", "act now",
		"100% free", "risk free", "guaranteed income", "crypto giveaway",
		"cliquez ici", "argent facile", "gagnez de l'argent", "offre limitee",
	}

	// DefaultHateKeywords are plain substrings searched in lower-cased text.
	DefaultHateKeywords = []string{
		"heil hitler", "sieg heil", "white power", "kill yourself",
		"race inferieure", "retourne dans ton pays", "go back to your country",
		"gas them",
	}
)
