package dto

type AuthTelegramRequest struct {
	InitData string `json:"init_data"`
}

// RewardUserRequest carries the reward ids in flip order.
type RewardUserRequest struct {
	RewardIDs []int64 `json:"rewardIds"`
}
