package domain

// NamedObject is a Clockify workspace or project as returned by list endpoints.
type NamedObject struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
