package models

type ReprocessRequest struct {
	// CustomPrompt replaces the classification-derived enhancement prompt.
	CustomPrompt string `json:"custom_prompt"`
	// SourceImage selects the input bytes: "original" or "enhanced".
	// Defaults to "enhanced", falling back to the original when no
	// enhanced version exists yet.
	SourceImage string `json:"source_image,omitempty" example:"enhanced"`
}

type TagsUpdateRequest struct {
	PhotoIDs        []string `json:"photo_ids"`
	PropertyAddress string   `json:"property_address,omitempty"`
	RoomName        string   `json:"room_name,omitempty"`
}
