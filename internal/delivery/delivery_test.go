package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"dailytales/internal/storage"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"))
}

func TestParseDestination(t *testing.T) {
	t.Parallel()
	tests := []struct {
		raw     string
		numeric bool
		id      int64
	}{
		{raw: "123456789", numeric: true, id: 123456789},
		{raw: "-1001234567890", numeric: true, id: -1001234567890},
		{raw: "@mychannel", numeric: false},
		{raw: "12ab", numeric: false},
		{raw: " 42 ", numeric: true, id: 42},
	}
	for _, tt := range tests {
		d, err := ParseDestination(tt.raw)
		require.NoError(t, err, tt.raw)
		require.Equal(t, tt.numeric, d.Numeric, tt.raw)
		require.Equal(t, tt.id, d.ID, tt.raw)
	}
	_, err := ParseDestination("  ")
	require.True(t, errors.Is(err, ErrMissingCredentials))
}

type botServer struct {
	*httptest.Server
	lastChatID atomic.Value // json.RawMessage as string
	lastPath   atomic.Value
}

func newBotServer(t *testing.T, status int, body string) *botServer {
	t.Helper()
	bs := &botServer{}
	bs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			ChatID json.RawMessage `json:"chat_id"`
			Text   string          `json:"text"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		bs.lastChatID.Store(string(in.ChatID))
		bs.lastPath.Store(r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(bs.Close)
	return bs
}

func TestBotTransportDestinationCoercion(t *testing.T) {
	t.Parallel()
	srv := newBotServer(t, http.StatusOK, `{"ok":true,"result":{}}`)
	tr := &BotTransport{Token: "123:abc", BaseURL: srv.URL, HTTP: srv.Client()}

	num, _ := ParseDestination("123456789")
	require.NoError(t, tr.Send(context.Background(), num, "hi"))
	require.Equal(t, "123456789", srv.lastChatID.Load())
	require.Equal(t, "/bot123:abc/sendMessage", srv.lastPath.Load())

	handle, _ := ParseDestination("@mychannel")
	require.NoError(t, tr.Send(context.Background(), handle, "hi"))
	require.Equal(t, `"@mychannel"`, srv.lastChatID.Load())
}

func TestBotTransportRejected(t *testing.T) {
	t.Parallel()
	// HTTP 200 with ok=false still fails.
	srv := newBotServer(t, http.StatusOK, `{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`)
	tr := &BotTransport{Token: "t", BaseURL: srv.URL, HTTP: srv.Client()}
	d, _ := ParseDestination("@nowhere")

	err := tr.Send(context.Background(), d, "hi")
	var de *Error
	require.True(t, errors.As(err, &de))
	require.Equal(t, ReasonTransportRejected, de.Reason)
	require.Equal(t, "Bad Request: chat not found", de.Detail)
}

func TestBotTransportNetworkFailure(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	base := srv.URL
	srv.Close()

	tr := &BotTransport{Token: "secret-token", BaseURL: base}
	d, _ := ParseDestination("1")
	err := tr.Send(context.Background(), d, "hi")
	require.Equal(t, ReasonNetworkFailure, ReasonOf(err))
	require.NotContains(t, err.Error(), "secret-token")
}

func TestBotTransportMissingToken(t *testing.T) {
	t.Parallel()
	d, _ := ParseDestination("1")
	err := (&BotTransport{}).Send(context.Background(), d, "hi")
	require.True(t, errors.Is(err, ErrMissingCredentials))
}

type fakeSession struct {
	connectErr  error
	sendErr     error
	connects    int
	sends       int
	disconnects int
	sentTo      Destination
}

func (f *fakeSession) Connect(ctx context.Context) error { f.connects++; return f.connectErr }
func (f *fakeSession) SendMessage(ctx context.Context, to Destination, text string) error {
	f.sends++
	f.sentTo = to
	return f.sendErr
}
func (f *fakeSession) Disconnect(ctx context.Context) error { f.disconnects++; return nil }

func sessionTransport(f *fakeSession) *SessionTransport {
	return &SessionTransport{
		Creds:     SessionCredentials{APIID: "1", APIHash: "h", Session: "s"},
		NewClient: func(SessionCredentials) (SessionClient, error) { return f, nil },
	}
}

func TestSessionTransportAlwaysDisconnects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		fake       *fakeSession
		wantReason Reason
		wantSends  int
	}{
		{name: "success", fake: &fakeSession{}, wantSends: 1},
		{name: "send fails", fake: &fakeSession{sendErr: errors.New("CHAT_WRITE_FORBIDDEN")}, wantReason: ReasonTransportRejected, wantSends: 1},
		{name: "connect fails", fake: &fakeSession{connectErr: context.DeadlineExceeded}, wantReason: ReasonNetworkFailure},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d, _ := ParseDestination("-1001234567890")
			err := sessionTransport(tt.fake).Send(context.Background(), d, "hello")
			require.Equal(t, tt.wantReason, ReasonOf(err))
			require.Equal(t, 1, tt.fake.disconnects)
			require.Equal(t, tt.wantSends, tt.fake.sends)
		})
	}
}

func TestSessionTransportDisconnectsOnCanceledContext(t *testing.T) {
	t.Parallel()
	f := &fakeSession{connectErr: context.Canceled}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d, _ := ParseDestination("@chan")
	err := sessionTransport(f).Send(ctx, d, "x")
	require.Equal(t, ReasonNetworkFailure, ReasonOf(err))
	require.Equal(t, 1, f.disconnects)
}

func TestSessionTransportPassesNumericDestination(t *testing.T) {
	t.Parallel()
	f := &fakeSession{}
	d, _ := ParseDestination("123456789")
	require.NoError(t, sessionTransport(f).Send(context.Background(), d, "x"))
	require.True(t, f.sentTo.Numeric)
	require.Equal(t, int64(123456789), f.sentTo.ID)
}

func TestSelect(t *testing.T) {
	t.Parallel()
	full := storage.Settings{ChatID: "@c", BotToken: "tok", APIID: "1", APIHash: "h", SessionString: "s"}

	tr, err := Select(full, Options{})
	require.NoError(t, err)
	require.Equal(t, "session", tr.Name())

	partial := full
	partial.SessionString = ""
	tr, err = Select(partial, Options{})
	require.NoError(t, err)
	require.Equal(t, "bot", tr.Name())

	_, err = Select(storage.Settings{ChatID: "@c", APIID: "1"}, Options{})
	require.True(t, errors.Is(err, ErrMissingCredentials))
}

func TestMTProtoClientRejectsBadCredentials(t *testing.T) {
	t.Parallel()
	_, err := NewMTProtoClient(SessionCredentials{APIID: "abc", APIHash: "h", Session: "s"})
	require.True(t, errors.Is(err, ErrMissingCredentials))

	_, err = NewMTProtoClient(SessionCredentials{APIID: "12345", APIHash: "h", Session: "not-a-session"})
	require.Equal(t, ReasonTransportRejected, ReasonOf(err))
}

func TestClassify(t *testing.T) {
	t.Parallel()
	require.Equal(t, ReasonNetworkFailure, classify(context.DeadlineExceeded).Reason)
	require.Equal(t, ReasonTransportRejected, classify(errors.New("PEER_ID_INVALID")).Reason)
	pre := missing("x")
	require.Same(t, pre, classify(pre))
}

// fakeRun mimics telegram.Client.Run: it calls f unless failFast is set and
// counts how many loops are still running.
type fakeRun struct {
	active   atomic.Int32
	failFast error
}

func (r *fakeRun) run(ctx context.Context, f func(ctx context.Context) error) error {
	r.active.Add(1)
	defer r.active.Add(-1)
	if r.failFast != nil {
		return r.failFast
	}
	return f(ctx)
}

func newTestMTProto(r *fakeRun, authorized bool) *mtprotoClient {
	return &mtprotoClient{
		run:        r.run,
		authorized: func(context.Context) (bool, error) { return authorized, nil },
	}
}

func TestMTProtoClientLifecycle(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		failFast   error
		authorized bool
		wantReason Reason
	}{
		{name: "connected", authorized: true},
		{name: "not authorized", wantReason: ReasonTransportRejected},
		{name: "run fails before ready", failFast: fmt.Errorf("dial: %w", context.DeadlineExceeded), wantReason: ReasonNetworkFailure},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &fakeRun{failFast: tt.failFast}
			m := newTestMTProto(r, tt.authorized)

			err := m.Connect(context.Background())
			require.Equal(t, tt.wantReason, ReasonOf(err))

			require.NoError(t, m.Disconnect(context.Background()))
			require.Zero(t, r.active.Load())
			// A second call is a no-op.
			require.NoError(t, m.Disconnect(context.Background()))
		})
	}
}

func TestMTProtoClientConnectCanceled(t *testing.T) {
	t.Parallel()
	r := &fakeRun{}
	m := &mtprotoClient{
		run: func(ctx context.Context, _ func(ctx context.Context) error) error {
			r.active.Add(1)
			defer r.active.Add(-1)
			<-ctx.Done()
			return ctx.Err()
		},
		authorized: func(context.Context) (bool, error) { return true, nil },
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Connect(ctx)
	require.Equal(t, ReasonNetworkFailure, ReasonOf(err))
	require.NoError(t, m.Disconnect(context.Background()))
	require.Zero(t, r.active.Load())
}
