package rest

import "github.com/google/uuid"

// CreateLobbyRequest creates a fresh lobby.
type CreateLobbyRequest struct {
	RoundDuration int    `json:"round_duration,omitempty"`
	Playlist      string `json:"playlist,omitempty"`
}

// LobbyInfo is returned when a lobby is created: the admin credential plus
// the join code players use.
type LobbyInfo struct {
	LobbyID  uuid.UUID `json:"lobby_id"`
	JoinCode string    `json:"join_code"`
	AdminID  uuid.UUID `json:"admin_id"`
}

// JoinLobbyRequest joins an existing lobby by code. PlayerID may carry a
// previously stored identity so the server can resume it instead of minting
// a new player.
type JoinLobbyRequest struct {
	JoinCode string     `json:"join_code"`
	Name     string     `json:"name"`
	PlayerID *uuid.UUID `json:"player_id,omitempty"`
}

// JoinLobbyResponse is the minted (or resumed) identity.
type JoinLobbyResponse struct {
	PlayerID uuid.UUID `json:"player_id"`
	LobbyID  uuid.UUID `json:"lobby_id"`
}

// SessionRef identifies one stored session for validation.
type SessionRef struct {
	PlayerID uuid.UUID `json:"player_id"`
	LobbyID  uuid.UUID `json:"lobby_id"`
}

// CheckSessionsRequest asks the server which stored sessions still exist.
type CheckSessionsRequest struct {
	Sessions []SessionRef `json:"sessions"`
}

// CheckSessionsResponse lists the still-recognized subset.
type CheckSessionsResponse struct {
	Valid []SessionRef `json:"valid"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error string `json:"error"`
}
