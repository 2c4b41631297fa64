package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// SMSSender delivers reminders through an HTTP SMS gateway. Requests are
// signed with HMAC-SHA256 over the sorted form parameters using the access
// key secret.
type SMSSender struct {
	gatewayURL      string
	accessKeyID     string
	accessKeySecret string
	signName        string
	client          *http.Client
}

// NewSMSSender creates the sms channel sender.
func NewSMSSender(gatewayURL, accessKeyID, accessKeySecret, signName string) *SMSSender {
	return &SMSSender{
		gatewayURL:      gatewayURL,
		accessKeyID:     accessKeyID,
		accessKeySecret: accessKeySecret,
		signName:        signName,
		client:          &http.Client{},
	}
}

func (s *SMSSender) Name() string {
	return ChannelSMS
}

func (s *SMSSender) Send(ctx context.Context, msg Message) (string, error) {
	if msg.Recipient == "" {
		return "", errors.New("notify: sms message has no recipient phone number")
	}

	form := url.Values{}
	form.Set("access_key_id", s.accessKeyID)
	form.Set("phone", msg.Recipient)
	form.Set("sign_name", s.signName)
	form.Set("content", msg.Content)
	form.Set("timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	form.Set("signature", s.sign(form))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		return string(raw), fmt.Errorf("notify: sms gateway returned HTTP %d", resp.StatusCode)
	}
	return string(raw), nil
}

// sign computes the gateway signature over the canonical (sorted) form
// encoding, excluding the signature field itself.
func (s *SMSSender) sign(form url.Values) string {
	canonical := form.Encode() // url.Values.Encode sorts by key
	mac := hmac.New(sha256.New, []byte(s.accessKeySecret))
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
