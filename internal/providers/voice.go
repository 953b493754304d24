package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"escalation-service/internal/logging"
)

// VoiceCaller places tier-2 calls via the Twilio voice API, reading the
// alert text aloud. It also implements engine.VoiceGate: availability is
// driven by credential presence.
type VoiceCaller struct {
	accountSID string
	authToken  string
	fromNumber string
	toNumber   string
	client     *http.Client
	logger     *logging.Logger
}

// NewVoiceCaller creates a caller. Unlike the other senders, missing
// configuration is not an error: the caller reports itself unavailable and
// the voice tier records skipped_no_sender.
func NewVoiceCaller(accountSID, authToken, fromNumber, toNumber string, logger *logging.Logger) *VoiceCaller {
	return &VoiceCaller{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		toNumber:   toNumber,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

// IsAvailable reports whether the caller is fully configured.
func (v *VoiceCaller) IsAvailable() bool {
	return v != nil && v.accountSID != "" && v.authToken != "" && v.fromNumber != "" && v.toNumber != ""
}

var twimlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Send places one call that speaks the message.
func (v *VoiceCaller) Send(ctx context.Context, message string) error {
	if !v.IsAvailable() {
		return fmt.Errorf("voice caller is not configured")
	}

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Calls.json", v.accountSID)
	twiml := fmt.Sprintf("<Response><Say>%s</Say></Response>", twimlEscaper.Replace(message))

	form := url.Values{}
	form.Set("To", v.toNumber)
	form.Set("From", v.fromNumber)
	form.Set("Twiml", twiml)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create voice call request: %w", err)
	}
	req.SetBasicAuth(v.accountSID, v.authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to place voice call to %s: %w", v.toNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("twilio API returned status %d for voice call to %s", resp.StatusCode, v.toNumber)
	}
	return nil
}
