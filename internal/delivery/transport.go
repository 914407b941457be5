// Package delivery sends a finished message to one Telegram destination,
// either through the Bot API with a bot token or through an authenticated
// user session.
package delivery

import (
	"context"
	"net/http"

	"dailytales/internal/storage"
)

// Transport delivers a single text message.
type Transport interface {
	Name() string
	Send(ctx context.Context, to Destination, text string) error
}

type Options struct {
	BotAPIBase string
	HTTPClient *http.Client
	// NewSessionClient builds the session client; nil uses the MTProto client.
	NewSessionClient SessionFactory
}

// Select chooses the transport from the stored credentials: a complete
// session credential set wins, then a bot token.
func Select(s storage.Settings, opt Options) (Transport, error) {
	switch {
	case s.HasSession():
		factory := opt.NewSessionClient
		if factory == nil {
			factory = NewMTProtoClient
		}
		return &SessionTransport{
			Creds:     SessionCredentials{APIID: s.APIID, APIHash: s.APIHash, Session: s.SessionString},
			NewClient: factory,
		}, nil
	case s.HasBotToken():
		return &BotTransport{Token: s.BotToken, BaseURL: opt.BotAPIBase, HTTP: opt.HTTPClient}, nil
	default:
		return nil, missing("no bot token or complete session credentials")
	}
}
