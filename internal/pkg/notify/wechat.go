package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// WechatSender posts reminders to an enterprise WeChat group robot webhook.
type WechatSender struct {
	webhookURL string
	client     *http.Client
}

// NewWechatSender creates the wechat channel sender.
func NewWechatSender(webhookURL string) *WechatSender {
	return &WechatSender{
		webhookURL: webhookURL,
		client:     &http.Client{},
	}
}

func (s *WechatSender) Name() string {
	return ChannelWechat
}

type wechatPayload struct {
	MsgType string            `json:"msgtype"`
	Text    wechatTextContent `json:"text"`
}

type wechatTextContent struct {
	Content string `json:"content"`
}

type wechatResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (s *WechatSender) Send(ctx context.Context, msg Message) (string, error) {
	url := s.webhookURL
	if msg.Recipient != "" {
		url = msg.Recipient
	}

	payload := wechatPayload{
		MsgType: "text",
		Text:    wechatTextContent{Content: msg.Subject + "\n" + msg.Content},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("notify: marshaling wechat payload: %w", err)
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

	var parsed wechatResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.ErrCode != 0 {
		return string(raw), fmt.Errorf("notify: wechat webhook rejected message: errcode=%d errmsg=%s", parsed.ErrCode, parsed.ErrMsg)
	}
	if resp.StatusCode >= 300 {
		return string(raw), fmt.Errorf("notify: wechat webhook returned HTTP %d", resp.StatusCode)
	}
	return string(raw), nil
}
