package models

// Email templates known to the mailer.
const (
	TemplateReceipt      = "receipt"
	TemplateReadingReady = "reading_ready"
)

type SendEmailPayload struct {
	Recipient    string            `json:"recipient"`
	Subject      string            `json:"subject"`
	Body         string            `json:"body"`
	TemplateName string            `json:"template_name"`
	Data         map[string]string `json:"data,omitempty"`
}
