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

// WhatsAppSender delivers tier-1 notifications via the Twilio WhatsApp API.
type WhatsAppSender struct {
	accountSID string
	authToken  string
	fromNumber string
	toNumber   string
	client     *http.Client
	logger     *logging.Logger
}

// NewWhatsAppSender creates a sender. Numbers are in E.164 form without the
// whatsapp: prefix.
func NewWhatsAppSender(accountSID, authToken, fromNumber, toNumber string, logger *logging.Logger) (*WhatsAppSender, error) {
	if accountSID == "" || authToken == "" || fromNumber == "" || toNumber == "" {
		return nil, fmt.Errorf("missing whatsapp configuration: account sid, auth token, from, or to is empty")
	}
	return &WhatsAppSender{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		toNumber:   toNumber,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Send delivers one message.
func (w *WhatsAppSender) Send(ctx context.Context, message string) error {
	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", w.accountSID)

	form := url.Values{}
	form.Set("To", "whatsapp:"+w.toNumber)
	form.Set("From", "whatsapp:"+w.fromNumber)
	form.Set("Body", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.SetBasicAuth(w.accountSID, w.authToken)
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send whatsapp message to %s: %w", w.toNumber, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("twilio API returned status %d for whatsapp message to %s", resp.StatusCode, w.toNumber)
	}
	return nil
}
