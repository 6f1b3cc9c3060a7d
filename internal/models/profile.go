package models

import (
	"time"
)

// Profile holds the credit balance of one authenticated user.
type Profile struct {
	UserID          string    `json:"userId" db:"user_id"` // matches auth.users.id
	AnalysisCredits int       `json:"analysisCredits" db:"analysis_credits"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
}

// ProfileResponse is returned by the profile endpoints.
type ProfileResponse struct {
	UserID          string `json:"userId"`
	AnalysisCredits int    `json:"analysisCredits"`
}
