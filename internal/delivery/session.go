package delivery

import (
	"context"
	"strings"
	"time"
)

type SessionCredentials struct {
	APIID   string
	APIHash string
	Session string
}

// SessionClient is a user-session connection. Disconnect must be safe to
// call after a failed Connect.
type SessionClient interface {
	Connect(ctx context.Context) error
	SendMessage(ctx context.Context, to Destination, text string) error
	Disconnect(ctx context.Context) error
}

type SessionFactory func(SessionCredentials) (SessionClient, error)

// SessionTransport opens a connection per send and always releases it.
type SessionTransport struct {
	Creds     SessionCredentials
	NewClient SessionFactory
}

func (t *SessionTransport) Name() string { return "session" }

const disconnectTimeout = 5 * time.Second

func (t *SessionTransport) Send(ctx context.Context, to Destination, text string) (err error) {
	c := t.Creds
	if strings.TrimSpace(c.APIID) == "" || strings.TrimSpace(c.APIHash) == "" || strings.TrimSpace(c.Session) == "" {
		return missing("api id, api hash and session string are all required")
	}
	if to.Raw == "" {
		return missing("chat id is empty")
	}
	if t.NewClient == nil {
		return missing("no session client")
	}

	client, err := t.NewClient(c)
	if err != nil {
		return classify(err)
	}
	defer func() {
		// Runs even when ctx is already done.
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), disconnectTimeout)
		defer cancel()
		_ = client.Disconnect(dctx)
	}()

	if err := client.Connect(ctx); err != nil {
		return classify(err)
	}
	if err := client.SendMessage(ctx, to, text); err != nil {
		return classify(err)
	}
	return nil
}
