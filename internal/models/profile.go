package models

import "slices"

// Profile is the signed-in user as reported by the remote API
type Profile struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Timezone     string  `json:"timezone"`
	WorkspaceIDs []int64 `json:"workspace_ids"`
}

func (p Profile) Equal(other Profile) bool {
	return p.ID == other.ID &&
		p.Name == other.Name &&
		p.Email == other.Email &&
		p.Timezone == other.Timezone &&
		slices.Equal(p.WorkspaceIDs, other.WorkspaceIDs)
}
