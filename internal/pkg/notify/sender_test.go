package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	name string
}

func (s stubSender) Name() string { return s.name }
func (s stubSender) Send(ctx context.Context, msg Message) (string, error) {
	return "", nil
}

func TestRegistryRegisterAndGet(t *testing.T) {
	registry := Registry{}
	registry.Register(stubSender{name: ChannelEmail})
	registry.Register(stubSender{name: ChannelFeishu})

	_, ok := registry.Get(ChannelEmail)
	assert.True(t, ok)
	_, ok = registry.Get(ChannelSMS)
	assert.False(t, ok)

	assert.Equal(t, []string{ChannelEmail, ChannelFeishu}, registry.Channels())
}

func TestErrUnknownChannel(t *testing.T) {
	err := ErrUnknownChannel{Channel: "pigeon"}
	assert.Contains(t, err.Error(), "pigeon")
}

func TestFeishuSenderPostsTextPayload(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"code":0,"msg":"success"}`))
	}))
	defer server.Close()

	sender := NewFeishuSender(server.URL, "s3cret")
	response, err := sender.Send(context.Background(), Message{
		Subject: "Upcoming payment",
		Content: "Netflix renews tomorrow.",
	})
	require.NoError(t, err)
	assert.Contains(t, response, `"code":0`)

	assert.Equal(t, "text", got["msg_type"])
	assert.NotEmpty(t, got["timestamp"])
	assert.NotEmpty(t, got["sign"])
	content, ok := got["content"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "Upcoming payment\nNetflix renews tomorrow.", content["text"])
}

func TestFeishuSenderRejectedByAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":19001,"msg":"param invalid"}`))
	}))
	defer server.Close()

	sender := NewFeishuSender(server.URL, "")
	_, err := sender.Send(context.Background(), Message{Subject: "x", Content: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "19001")
}

func TestWechatSenderPostsTextPayload(t *testing.T) {
	var got wechatPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer server.Close()

	sender := NewWechatSender(server.URL)
	_, err := sender.Send(context.Background(), Message{
		Subject: "Expiring soon",
		Content: "Domain expires on 2024-06-30.",
	})
	require.NoError(t, err)

	assert.Equal(t, "text", got.MsgType)
	assert.Equal(t, "Expiring soon\nDomain expires on 2024-06-30.", got.Text.Content)
}

func TestWechatSenderRecipientOverridesWebhook(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`{"errcode":0,"errmsg":"ok"}`))
	}))
	defer server.Close()

	sender := NewWechatSender("http://configured.invalid/hook")
	_, err := sender.Send(context.Background(), Message{Recipient: server.URL, Subject: "x", Content: "y"})
	require.NoError(t, err)
	assert.Equal(t, 1, hits)
}

func TestSignFeishuIsDeterministic(t *testing.T) {
	a := signFeishu("1700000000", "secret")
	b := signFeishu("1700000000", "secret")
	c := signFeishu("1700000001", "secret")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.NotEmpty(t, a)
}
