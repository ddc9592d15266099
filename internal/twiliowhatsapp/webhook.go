package twiliowhatsapp

import (
	"net/http"

	"github.com/twilio/twilio-go/client"
)

// SignatureHeader carries Twilio's request signature.
const SignatureHeader = "X-Twilio-Signature"

// Inbound is a parsed incoming WhatsApp message.
type Inbound struct {
	From string // bare number, without the "whatsapp:" prefix
	Body string
}

// Validator checks that webhook requests were signed by Twilio.
type Validator struct {
	validator client.RequestValidator
}

// NewValidator creates a Validator for the account's auth token.
func NewValidator(authToken string) *Validator {
	return &Validator{validator: client.NewRequestValidator(authToken)}
}

// Validate checks the signature of an already parsed form request. publicURL
// is the full URL Twilio was configured to call.
func (v *Validator) Validate(r *http.Request, publicURL string) bool {
	params := make(map[string]string, len(r.PostForm))
	for k, vals := range r.PostForm {
		if len(vals) > 0 {
			params[k] = vals[0]
		}
	}
	return v.validator.Validate(publicURL, params, r.Header.Get(SignatureHeader))
}

// ParseInbound reads the sender and text of a webhook call.
func ParseInbound(r *http.Request) (Inbound, error) {
	if err := r.ParseForm(); err != nil {
		return Inbound{}, err
	}
	return Inbound{
		From: Number(r.PostForm.Get("From")),
		Body: r.PostForm.Get("Body"),
	}, nil
}
