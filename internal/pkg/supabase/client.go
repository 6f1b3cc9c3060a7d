package supabase

import (
	"log/slog"
	"strings"

	"github.com/supabase-community/gotrue-go"
)

// extractProjectRef extracts just the project reference ID from a Supabase URL
// From: https://akrqbuajqkirdekonpzy.supabase.co
// To: akrqbuajqkirdekonpzy
func extractProjectRef(url string) string {
	url = strings.TrimPrefix(url, "https://")
	url = strings.TrimPrefix(url, "http://")

	parts := strings.Split(url, ".")
	return parts[0]
}

// newAuthClient builds a GoTrue client. Hosted projects are addressed by their
// project reference; any other URL (self-hosted, local) is used as is.
func newAuthClient(supabaseURL, apiKey string) gotrue.Client {
	projectRef := extractProjectRef(supabaseURL)
	client := gotrue.New(projectRef, apiKey)

	if !strings.Contains(supabaseURL, ".supabase.co") {
		client = client.WithCustomGoTrueURL(strings.TrimRight(supabaseURL, "/") + "/auth/v1")
	}

	slog.Info("Initializing Supabase auth client", "project", projectRef)
	return client
}
