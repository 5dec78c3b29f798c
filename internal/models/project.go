package models

// Project is a remote project owned by a workspace
type Project struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Active      bool   `json:"active"`
	WorkspaceID int64  `json:"workspace_id"`
}

// ProjectsByID indexes projects by their identity
func ProjectsByID(projects []Project) map[int64]Project {
	indexed := make(map[int64]Project, len(projects))
	for _, p := range projects {
		indexed[p.ID] = p
	}
	return indexed
}
