package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const DefaultBotAPIBase = "https://api.telegram.org"

// BotTransport calls sendMessage on the Bot API. Success is the body's ok
// flag, not the HTTP status.
type BotTransport struct {
	Token   string
	BaseURL string
	HTTP    *http.Client
}

func (t *BotTransport) Name() string { return "bot" }

type sendMessageRequest struct {
	ChatID any    `json:"chat_id"`
	Text   string `json:"text"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

func (t *BotTransport) Send(ctx context.Context, to Destination, text string) error {
	token := strings.TrimSpace(t.Token)
	if token == "" {
		return missing("bot token is empty")
	}
	if to.Raw == "" {
		return missing("chat id is empty")
	}
	base := strings.TrimRight(strings.TrimSpace(t.BaseURL), "/")
	if base == "" {
		base = DefaultBotAPIBase
	}

	b, err := json.Marshal(sendMessageRequest{ChatID: to.chatIDValue(), Text: text})
	if err != nil {
		return rejected("encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/bot"+token+"/sendMessage", bytes.NewReader(b))
	if err != nil {
		return rejected("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		// url.Error embeds the token in its message.
		return network(fmt.Errorf("sendMessage: %w", redactToken(err, token)))
	}
	defer resp.Body.Close()

	var out botResponse
	raw, rerr := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if rerr != nil {
		return network(rerr)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode >= 500 {
			return network(fmt.Errorf("sendMessage: http %d", resp.StatusCode))
		}
		return rejected(fmt.Sprintf("unexpected response (http %d)", resp.StatusCode), err)
	}
	if !out.OK {
		desc := out.Description
		if desc == "" {
			desc = fmt.Sprintf("telegram rejected the message (http %d)", resp.StatusCode)
		}
		return rejected(desc, nil)
	}
	return nil
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }

func redactToken(err error, token string) error {
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return &redactedError{msg: strings.ReplaceAll(msg, token, "<token>"), err: err}
}
