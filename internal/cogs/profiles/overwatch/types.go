package overwatch

// regionalStats is one region of an owapi blob response.
type regionalStats struct {
	Stats struct {
		QuickPlay   *modeStats `json:"quickplay"`
		Competitive *modeStats `json:"competitive"`
	} `json:"stats"`
}

type modeStats struct {
	OverallStats struct {
		Level    int     `json:"level"`
		Prestige int     `json:"prestige"`
		CompRank int     `json:"comprank"`
		Tier     string  `json:"tier"`
		Games    int     `json:"games"`
		Wins     int     `json:"wins"`
		Losses   int     `json:"losses"`
		Ties     int     `json:"ties"`
		WinRate  float64 `json:"win_rate"`
	} `json:"overall_stats"`
	GameStats struct {
		TimePlayed float64 `json:"time_played"`
	} `json:"game_stats"`
}
