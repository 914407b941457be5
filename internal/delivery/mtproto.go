package delivery

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/peers"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"
)

// mtprotoClient is the SessionClient backed by gotd. The session string is
// in Telethon StringSession format and lives only in memory.
type mtprotoClient struct {
	client *telegram.Client
	store  *session.StorageMemory

	// run and authorized default to the gotd client; tests replace them.
	run        func(ctx context.Context, f func(ctx context.Context) error) error
	authorized func(ctx context.Context) (bool, error)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

// NewMTProtoClient is the default SessionFactory.
func NewMTProtoClient(c SessionCredentials) (SessionClient, error) {
	appID, err := strconv.Atoi(strings.TrimSpace(c.APIID))
	if err != nil || appID <= 0 {
		return nil, missing("api id must be a positive integer")
	}
	data, err := session.TelethonSession(strings.TrimSpace(c.Session))
	if err != nil {
		return nil, rejected("session string is not valid", err)
	}
	store := new(session.StorageMemory)
	if err := (&session.Loader{Storage: store}).Save(context.Background(), data); err != nil {
		return nil, rejected("load session", err)
	}
	client := telegram.NewClient(appID, strings.TrimSpace(c.APIHash), telegram.Options{
		SessionStorage: store,
		NoUpdates:      true,
	})
	m := &mtprotoClient{client: client, store: store, run: client.Run}
	m.authorized = func(ctx context.Context) (bool, error) {
		st, err := client.Auth().Status(ctx)
		if err != nil {
			return false, err
		}
		return st.Authorized, nil
	}
	return m, nil
}

// Connect starts the client's Run loop in the background and returns once
// the connection is up. Run keeps going until Disconnect or ctx is done.
func (m *mtprotoClient) Connect(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	ready := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.run(runCtx, func(ctx context.Context) error {
			close(ready)
			<-ctx.Done()
			return nil
		})
	}()

	m.mu.Lock()
	m.cancel, m.done = cancel, done
	m.mu.Unlock()

	select {
	case <-ready:
	case err := <-done:
		// Run already returned; nothing is left for Disconnect to wait on.
		m.mu.Lock()
		m.cancel, m.done = nil, nil
		m.mu.Unlock()
		cancel()
		if err == nil {
			err = errors.New("client stopped before ready")
		}
		return wrapRPC("connect", err)
	case <-ctx.Done():
		return wrapRPC("connect", ctx.Err())
	}

	ok, err := m.authorized(ctx)
	if err != nil {
		return wrapRPC("auth status", err)
	}
	if !ok {
		return rejected("session is not authorized", nil)
	}
	return nil
}

func (m *mtprotoClient) SendMessage(ctx context.Context, to Destination, text string) error {
	api := m.client.API()
	sender := message.NewSender(api)

	if !to.Numeric {
		_, err := sender.Resolve(to.Raw).Text(ctx, text)
		return wrapRPC("send", err)
	}

	input, err := resolveNumeric(ctx, peers.Options{}.Build(api), to.ID)
	if err != nil {
		return wrapRPC("resolve peer", err)
	}
	_, err = sender.To(input).Text(ctx, text)
	return wrapRPC("send", err)
}

// Disconnect stops the Run loop and waits for it to return.
func (m *mtprotoClient) Disconnect(ctx context.Context) error {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			return wrapRPC("disconnect", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Marked ids: -100<channel>, -<chat>, <user>.
const channelMark = 1_000_000_000_000

func resolveNumeric(ctx context.Context, pm *peers.Manager, id int64) (tg.InputPeerClass, error) {
	switch {
	case id <= -channelMark:
		ch, err := pm.ResolveChannelID(ctx, -id-channelMark)
		if err != nil {
			return nil, err
		}
		return ch.InputPeer(), nil
	case id < 0:
		chat, err := pm.ResolveChatID(ctx, -id)
		if err != nil {
			return nil, err
		}
		return chat.InputPeer(), nil
	default:
		u, err := pm.ResolveUserID(ctx, id)
		if err != nil {
			return nil, err
		}
		return u.InputPeer(), nil
	}
}

func wrapRPC(op string, err error) error {
	if err == nil {
		return nil
	}
	if rpc, ok := tgerr.As(err); ok {
		return rejected(fmt.Sprintf("%s: %s", op, rpc.Type), err)
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return classify(fmt.Errorf("%s: %w", op, err))
}
