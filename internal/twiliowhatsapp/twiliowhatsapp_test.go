package twiliowhatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestMockClient_SendMessage(t *testing.T) {
	ctx := context.Background()
	mock := NewMockClient()

	err := mock.SendMessage(ctx, "+33612345678", "Bonjour")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent := mock.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 message, got %d", len(sent))
	}
	if sent[0].Body != "Bonjour" || sent[0].To != "+33612345678" {
		t.Errorf("unexpected message %+v", sent[0])
	}
}

func TestNewClientRequiresCredentials(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")

	if _, err := NewClient(); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok")); !errors.Is(err, ErrMissingCredentials) {
		t.Error("expected error without sender number")
	}
	c, err := NewClient(WithAccountSID("AC123"), WithAuthToken("tok"), WithFromWhats("+14155238886"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.from != "whatsapp:+14155238886" {
		t.Errorf("sender should be addressed, got %q", c.from)
	}
}

func TestAddressAndNumber(t *testing.T) {
	if got := Address("+33612345678"); got != "whatsapp:+33612345678" {
		t.Errorf("Address = %q", got)
	}
	if got := Address("whatsapp:+33612345678"); got != "whatsapp:+33612345678" {
		t.Errorf("Address must not double the prefix, got %q", got)
	}
	if got := Number(" whatsapp:+33612345678 "); got != "+33612345678" {
		t.Errorf("Number = %q", got)
	}
}

func TestSplitBody(t *testing.T) {
	if parts := SplitBody("court", 10); len(parts) != 1 || parts[0] != "court" {
		t.Errorf("short body should be kept whole, got %v", parts)
	}

	body := strings.Repeat("érosion ", 500) // 4000 runes
	parts := SplitBody(body, MaxBodyLength)
	if len(parts) < 3 {
		t.Fatalf("expected at least 3 parts, got %d", len(parts))
	}
	for i, p := range parts {
		if n := utf8.RuneCountInString(p); n > MaxBodyLength {
			t.Errorf("part %d has %d runes", i, n)
		}
		if strings.HasPrefix(p, " ") || strings.HasSuffix(p, " ") {
			t.Errorf("part %d should be trimmed", i)
		}
	}
	if got := strings.Join(parts, " "); got != strings.TrimSpace(body) {
		t.Error("rejoined parts should match the original text")
	}

	unbroken := strings.Repeat("a", 25)
	parts = SplitBody(unbroken, 10)
	if len(parts) != 3 || parts[0] != strings.Repeat("a", 10) {
		t.Errorf("unbroken text should be cut hard, got %v", parts)
	}
}

// sign computes a Twilio request signature.
func sign(token, fullURL string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k + params[k])
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestValidatorAndParseInbound(t *testing.T) {
	const token = "secret-token"
	const publicURL = "https://terrapipe.example.org/twilio/whatsapp"
	params := map[string]string{"From": "whatsapp:+33612345678", "Body": "Chartres"}

	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req := httptest.NewRequest("POST", "/twilio/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set(SignatureHeader, sign(token, publicURL, params))

	in, err := ParseInbound(req)
	if err != nil {
		t.Fatalf("ParseInbound failed: %v", err)
	}
	if in.From != "+33612345678" || in.Body != "Chartres" {
		t.Errorf("unexpected inbound %+v", in)
	}

	if !NewValidator(token).Validate(req, publicURL) {
		t.Error("expected valid signature")
	}
	if NewValidator("other-token").Validate(req, publicURL) {
		t.Error("signature with the wrong token should be rejected")
	}
}
