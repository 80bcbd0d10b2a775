package lastfm

import (
	"bytes"

	"github.com/bytedance/sonic"
)

type recentTracksResponse struct {
	RecentTracks struct {
		Tracks trackList `json:"track"`
	} `json:"recenttracks"`
}

type errorResponse struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
}

type track struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Artist struct {
		Text string `json:"#text"`
	} `json:"artist"`
	Attr *struct {
		NowPlaying string `json:"nowplaying"`
	} `json:"@attr,omitempty"`
	Date *struct {
		UTS string `json:"uts"`
	} `json:"date,omitempty"`
}

// trackList accepts both an array and the single object Last.fm sends for one track.
type trackList []track

// UnmarshalJSON implements json.Unmarshaler.
func (l *trackList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single track
		if err := sonic.Unmarshal(data, &single); err != nil {
			return err
		}

		*l = trackList{single}

		return nil
	}

	var many []track
	if err := sonic.Unmarshal(data, &many); err != nil {
		return err
	}

	*l = many

	return nil
}
