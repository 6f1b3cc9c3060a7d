package models

// ValidatePalmRequest is the body of the palm check.
type ValidatePalmRequest struct {
	// Data URL ("data:image/jpeg;base64,...") or bare base64
	ImageBase64 string `json:"imageBase64"`
}

// AnalyzePalmRequest is the body of a reading request.
type AnalyzePalmRequest struct {
	ImageURL        string `json:"imageUrl" validate:"required"`
	AdditionalNotes string `json:"additionalNotes"`
	Language        string `json:"language" validate:"omitempty,max=35"`
}

// AnalyzePalmResponse carries the reading, the stored row id (empty when it
// could not be stored) and the balance after the deduction.
type AnalyzePalmResponse struct {
	Analysis         JSONB  `json:"analysis"`
	AnalysisID       string `json:"analysisId"`
	RemainingCredits int    `json:"remainingCredits"`
}

type CheckoutRequest struct {
	Origin string `json:"origin" validate:"required,url"`
}

type CheckoutResponse struct {
	URL       string `json:"url"`
	SessionID string `json:"sessionId"`
}

type UploadResponse struct {
	Path      string `json:"path"`
	SignedURL string `json:"signedUrl"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}
