package websocket

import (
	"encoding/json"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-matchmaker/internal/entity"
)

const (
	actionMatchmakingStart   = "matchmaking:start"
	actionMatchmakingCancel  = "matchmaking:cancel"
	actionMatchmakingState   = "matchmaking:state"
	actionMatchmakingElapsed = "matchmaking:elapsed"
	actionMatchmakingClose   = "matchmaking:close"
	actionMatchmakingError   = "matchmaking:error"
	actionNavigate           = "navigate"

	actionGameWatch   = "game:watch"
	actionGameUnwatch = "game:unwatch"
	actionGameRoom    = "game:room"
	actionGameClock   = "game:clock"

	actionFeedbackCue = "feedback:cue"

	actionFavoritesList   = "favorites:list"
	actionFavoritesToggle = "favorites:toggle"

	actionError = "error"
)

// Message represents a WebSocket message with an action type and a payload.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type StartPayload struct {
	PlayerID string `json:"player_id"`
}

type WatchPayload struct {
	RoomID   string `json:"room_id"`
	PlayerID string `json:"player_id"`
}

type TogglePayload struct {
	ID string `json:"id"`
}

type StatePayload struct {
	State string `json:"state"`
}

type ElapsedPayload struct {
	Seconds int `json:"seconds"`
}

type ErrorPayload struct {
	Action string `json:"action,omitempty"`
	Error  string `json:"error"`
}

type NavigatePayload struct {
	Destination string `json:"destination"`
	RoomID      string `json:"room_id"`
	Mode        string `json:"mode"`
}

type RoomPayload struct {
	Room *entity.Room `json:"room"`
}

type ClockPayload struct {
	TimeLeftX int `json:"time_left_x"`
	TimeLeftO int `json:"time_left_o"`
}

type CuePayload struct {
	Cue string `json:"cue"`
}

type FavoritesPayload struct {
	IDs      []string `json:"ids"`
	ID       string   `json:"id,omitempty"`
	Favorite bool     `json:"favorite,omitempty"`
}

func encodeMessage(action string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	data, err := json.Marshal(Message{Action: action, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
