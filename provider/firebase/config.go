package firebase

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// Config holds the Identity Toolkit client settings.
type Config struct {
	// APIKey is the Web API key of the Firebase project.
	APIKey string

	// Endpoint overrides the Identity Toolkit base URL, e.g. the auth
	// emulator at http://localhost:9099/www.googleapis.com/identitytoolkit/v3/relyingparty/.
	Endpoint string

	// ContinueURL is sent with password reset and verification emails.
	ContinueURL string

	// LegacyGenderPhotoURL stores the selected gender in the photo URL
	// field of the profile. Existing accounts created by the older front
	// end read it from there. Off by default.
	LegacyGenderPhotoURL bool
}

// Validate checks the configuration.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.APIKey, validation.Required),
		validation.Field(&c.Endpoint, is.URL),
		validation.Field(&c.ContinueURL, is.URL),
	)
}

func (c Config) endpoint() string {
	endpoint := strings.TrimSpace(c.Endpoint)
	if endpoint == "" || strings.HasSuffix(endpoint, "/") {
		return endpoint
	}
	return endpoint + "/"
}
