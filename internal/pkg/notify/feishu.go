package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// FeishuSender posts reminders to a Feishu bot webhook. When a secret is
// configured, requests carry the timestamp + HMAC-SHA256 signature the bot
// API requires.
type FeishuSender struct {
	webhookURL string
	secret     string
	client     *http.Client
}

// NewFeishuSender creates the feishu channel sender.
func NewFeishuSender(webhookURL, secret string) *FeishuSender {
	return &FeishuSender{
		webhookURL: webhookURL,
		secret:     secret,
		client:     &http.Client{},
	}
}

func (s *FeishuSender) Name() string {
	return ChannelFeishu
}

type feishuPayload struct {
	Timestamp string            `json:"timestamp,omitempty"`
	Sign      string            `json:"sign,omitempty"`
	MsgType   string            `json:"msg_type"`
	Content   feishuTextContent `json:"content"`
}

type feishuTextContent struct {
	Text string `json:"text"`
}

type feishuResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (s *FeishuSender) Send(ctx context.Context, msg Message) (string, error) {
	url := s.webhookURL
	if msg.Recipient != "" {
		// A per-reminder webhook overrides the globally configured one.
		url = msg.Recipient
	}

	payload := feishuPayload{
		MsgType: "text",
		Content: feishuTextContent{Text: msg.Subject + "\n" + msg.Content},
	}
	if s.secret != "" {
		ts := strconv.FormatInt(time.Now().Unix(), 10)
		payload.Timestamp = ts
		payload.Sign = signFeishu(ts, s.secret)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("notify: marshaling feishu payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", err
	}

	var parsed feishuResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Code != 0 {
		return string(raw), fmt.Errorf("notify: feishu webhook rejected message: code=%d msg=%s", parsed.Code, parsed.Msg)
	}
	if resp.StatusCode >= 300 {
		return string(raw), fmt.Errorf("notify: feishu webhook returned HTTP %d", resp.StatusCode)
	}
	return string(raw), nil
}

// signFeishu computes the bot webhook signature: the string "timestamp\nsecret"
// is used as the HMAC-SHA256 key over an empty message, base64-encoded.
func signFeishu(timestamp, secret string) string {
	key := timestamp + "\n" + secret
	mac := hmac.New(sha256.New, []byte(key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
