package dto

type SetRoleRequest struct {
	TargetID string `json:"target_id"`
	Role     string `json:"role"`
}

type SyncUsersResponse struct {
	Removed int64 `json:"removed"`
}

type ResetViewCountsResponse struct {
	Updated int64 `json:"updated"`
}
