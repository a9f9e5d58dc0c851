package actions

// Messages are the follow-up lines spoken after an action could not complete.
type Messages struct {
	NoResults      string
	SearchFailed   string
	PlaybackFailed string
	InvalidURL     string
	WeatherFailed  string
	NoteFailed     string
}

func DefaultMessages() Messages {
	return Messages{
		NoResults:      "Sorry, I couldn't find anything for that.",
		SearchFailed:   "Sorry, the search didn't work this time.",
		PlaybackFailed: "Sorry, I couldn't start playing that.",
		InvalidURL:     "Sorry, I couldn't open that.",
		WeatherFailed:  "Sorry, I couldn't get the weather right now.",
		NoteFailed:     "Sorry, I couldn't save that note.",
	}
}
