package riot

// EventItemPurchased is the timeline event type of a shop purchase
const EventItemPurchased = "ITEM_PURCHASED"

// LeagueListResponse represents /lol/league/v4/challengerleagues/by-queue/{queue}
type LeagueListResponse struct {
	Tier    string        `json:"tier"`
	Queue   string        `json:"queue"`
	Entries []LeagueEntry `json:"entries"`
}

type LeagueEntry struct {
	PUUID        string `json:"puuid"`
	LeaguePoints int    `json:"leaguePoints"`
	Rank         string `json:"rank"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"`
	GameDuration int                `json:"gameDuration"`
	GameVersion  string             `json:"gameVersion"`
	PlatformID   string             `json:"platformId"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	ParticipantID int    `json:"participantId"`
	PUUID         string `json:"puuid"`
	ChampionID    int    `json:"championId"`
	ChampionName  string `json:"championName"`
	Role          string `json:"role"`
	Lane          string `json:"lane"`
	TeamPosition  string `json:"teamPosition"` // TOP, JUNGLE, MIDDLE, BOTTOM, UTILITY
	Win           bool   `json:"win"`
}

// TimelineResponse represents the response from /lol/match/v5/matches/{matchId}/timeline
type TimelineResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     TimelineInfo  `json:"info"`
}

type TimelineInfo struct {
	FrameInterval int             `json:"frameInterval"`
	Frames        []TimelineFrame `json:"frames"`
}

type TimelineFrame struct {
	Timestamp int64           `json:"timestamp"`
	Events    []TimelineEvent `json:"events"`
}

type TimelineEvent struct {
	Type          string `json:"type"`
	Timestamp     int64  `json:"timestamp"`
	ParticipantID int    `json:"participantId,omitempty"`
	ItemID        int    `json:"itemId,omitempty"`
}
