package models

import "time"

// Analysis is one stored palm reading. It is written once and never updated.
type Analysis struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"userId" db:"user_id"`
	ImageURL        string    `json:"imageUrl" db:"image_url"`
	AdditionalNotes string    `json:"additionalNotes" db:"additional_notes"`
	Result          JSONB     `json:"analysisResult" db:"analysis_result"`
	Language        string    `json:"language" db:"language"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// AnalysisView is an analysis as listed to its owner, with a fresh image link.
type AnalysisView struct {
	Analysis
	SignedImageURL string   `json:"signedImageUrl"`
	Sections       []string `json:"sections,omitempty"`
}
