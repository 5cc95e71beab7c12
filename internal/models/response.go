package models

import "time"

type PhotoResponse struct {
	ID              string    `json:"id"`
	Status          string    `json:"status"`
	Classification  string    `json:"classification,omitempty"`
	OriginalName    string    `json:"original_name"`
	OriginalURL     string    `json:"original_url,omitempty"`
	EnhancedURL     string    `json:"enhanced_url,omitempty"`
	FileSize        int64     `json:"file_size"`
	AttemptCount    int       `json:"attempt_count"`
	PropertyAddress string    `json:"property_address,omitempty"`
	RoomName        string    `json:"room_name,omitempty"`
	Tags            []string  `json:"tags,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type UploadResponse struct {
	Message    string          `json:"message"`
	Accepted   int             `json:"accepted"`
	Duplicates int             `json:"duplicates"`
	Skipped    []SkippedFile   `json:"skipped,omitempty"`
	Photos     []PhotoResponse `json:"photos"`
}

type SkippedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

type PhotoListResponse struct {
	Photos []PhotoResponse `json:"photos"`
}

type StatsResponse struct {
	TotalPhotos       int `json:"total_photos"`
	TotalAttempts     int `json:"total_attempts"`
	CompletedPhotos   int `json:"completed_photos"`
	ProcessingPhotos  int `json:"processing_photos"`
	PendingPhotos     int `json:"pending_photos"`
	ErrorPhotos       int `json:"error_photos"`
	DuplicatesAvoided int `json:"duplicates_avoided"`
}

type CreditsResponse struct {
	Allowance int  `json:"credits_total"`
	Consumed  int  `json:"credits_used"`
	Remaining int  `json:"credits_remaining"`
	Unlimited bool `json:"unlimited"`
}

type CreditDeniedResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	Allowance  int    `json:"credits_total"`
	Consumed   int    `json:"credits_used"`
	Remaining  int    `json:"credits_remaining"`
	Requested  int    `json:"requested"`
	Affordable int    `json:"affordable"`
}

type ReprocessResponse struct {
	Message string        `json:"message"`
	Photo   PhotoResponse `json:"photo"`
}

type TagsUpdateResponse struct {
	Message      string `json:"message"`
	UpdatedCount int    `json:"updated_count"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
