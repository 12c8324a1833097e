package models

// Contact is one entry of a campaign's contact feed.
type Contact struct {
	Handle      string `json:"handle"`
	DisplayName string `json:"display_name"`
}
