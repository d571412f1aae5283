package telephony

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries the request signature on webhooks.
const SignatureHeader = "X-Twilio-Signature"

// ValidSignature reports whether signature matches a POST to fullURL with
// the given form params.
func ValidSignature(authToken, fullURL string, params url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}
	flat := make(map[string]string, len(params))
	for k := range params {
		flat[k] = params.Get(k)
	}
	validator := client.NewRequestValidator(authToken)
	return validator.Validate(fullURL, flat, signature)
}
