package models

type GameState int

const (
	GameStateIdle GameState = iota
	GameStateAwaitingPlayPermission
	GameStateNotAllowed
	GameStateRewardsLoading
	GameStatePlaying
	GameStateReadyToClaim
	GameStateClaiming
	GameStateFinished
)

var gameStateNames = map[GameState]string{
	GameStateIdle:                   "idle",
	GameStateAwaitingPlayPermission: "awaiting_play_permission",
	GameStateNotAllowed:             "not_allowed",
	GameStateRewardsLoading:         "rewards_loading",
	GameStatePlaying:                "playing",
	GameStateReadyToClaim:           "ready_to_claim",
	GameStateClaiming:               "claiming",
	GameStateFinished:               "finished",
}

func (s GameState) String() string {
	if name, ok := gameStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// InPlay reports whether a session has cards that are not yet claimed.
func (s GameState) InPlay() bool {
	return s == GameStatePlaying || s == GameStateReadyToClaim || s == GameStateClaiming
}
