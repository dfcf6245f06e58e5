package conferencing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	confErrors "meetly/internal/conferencing/errors"
	"meetly/pkg/config"
	"meetly/pkg/logger"
	"meetly/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	server      *httptest.Server
	tokenCalls  int32
	rejectNext  int32
	lastPath    string
	lastBody    map[string]any
	lastAuth    string
	mu          sync.Mutex
	status      int
	sessions    map[string]map[string]any
	recordings  int
	summaryHits int32
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{status: http.StatusOK, sessions: map[string]map[string]any{}, recordings: http.StatusNotFound}
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&p.tokenCalls, 1)
		_ = r.ParseForm()
		if r.Form.Get("grant_type") != "account_credentials" || !strings.HasPrefix(r.Header.Get("Authorization"), "Basic ") {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "token-" + string(rune('0'+n)),
			"expires_in":   3600,
		})
	})

	mux.HandleFunc("/v2/", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.lastPath = r.URL.Path
		p.lastAuth = r.Header.Get("Authorization")

		if atomic.LoadInt32(&p.rejectNext) > 0 {
			atomic.AddInt32(&p.rejectNext, -1)
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"code":124,"message":"Invalid access token."}`))
			return
		}
		if p.status != http.StatusOK {
			w.WriteHeader(p.status)
			_, _ = w.Write([]byte(`{"code":3001,"message":"Meeting does not exist."}`))
			return
		}

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v2/users/me/meetings":
			p.lastBody = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&p.lastBody)
			session := map[string]any{
				"id":         85746065432,
				"uuid":       "aDYlohsHRtCd4ii1uC2+hA==",
				"host_id":    "host-1",
				"host_email": "host@example.com",
				"topic":      p.lastBody["topic"],
				"type":       2,
				"status":     "waiting",
				"start_time": p.lastBody["start_time"],
				"duration":   p.lastBody["duration"],
				"timezone":   "UTC",
				"created_at": "2025-03-01T08:00:00Z",
				"start_url":  "https://provider.test/s/85746065432",
				"join_url":   "https://provider.test/j/85746065432",
				"password":   "abc123",
				"settings":   p.lastBody["settings"],
			}
			p.sessions["85746065432"] = session
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(session)
		case r.Method == http.MethodPatch:
			p.lastBody = map[string]any{}
			_ = json.NewDecoder(r.Body).Decode(&p.lastBody)
			id := strings.TrimPrefix(r.URL.Path, "/v2/meetings/")
			if s, ok := p.sessions[id]; ok {
				for k, v := range p.lastBody {
					s[k] = v
				}
			}
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodDelete:
			delete(p.sessions, strings.TrimPrefix(r.URL.Path, "/v2/meetings/"))
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/recordings"):
			if p.recordings != http.StatusOK {
				w.WriteHeader(p.recordings)
				_, _ = w.Write([]byte(`{"code":3301,"message":"This recording does not exist."}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{
				"share_url":               "https://provider.test/rec/share/abc",
				"recording_play_passcode": "play-pass",
			})
		case strings.HasSuffix(r.URL.Path, "/summary"):
			atomic.AddInt32(&p.summaryHits, 1)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"summary_overview": "Budget review",
				"summary_details":  []map[string]any{{"label": "Decisions", "summary": "Approved"}},
			})
		case r.Method == http.MethodGet && r.URL.Path == "/v2/users/me/meetings":
			list := make([]map[string]any, 0, len(p.sessions))
			for _, s := range p.sessions {
				list = append(list, s)
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"total_records": len(list), "meetings": list})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/past_meetings/"):
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 85746065432, "participants_count": 4, "total_minutes": 55})
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/v2/meetings/"):
			s, ok := p.sessions[strings.TrimPrefix(r.URL.Path, "/v2/meetings/")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				_, _ = w.Write([]byte(`{"code":3001,"message":"Meeting does not exist."}`))
				return
			}
			_ = json.NewEncoder(w).Encode(s)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) config() *config.Config {
	return &config.Config{
		Log:                        logger.Discard(),
		ConferencingAuthURL:        p.server.URL + "/oauth/token",
		ConferencingAPIURL:         p.server.URL + "/v2",
		ConferencingTimeout:        5 * time.Second,
		ConferencingTokenTTL:       time.Hour,
		ConferencingTokenCacheSize: 8,
		ConferencingTimezone:       "UTC",
	}
}

func testAccount() *model.ConferencingAccount {
	return &model.ConferencingAccount{
		ID:                "acc-1",
		Name:              "Primary",
		ProviderAccountID: "provider-acc-1",
		ClientID:          "client",
		ClientSecret:      "secret",
		HostKey:           "123456",
	}
}

func testMeeting() *model.Meeting {
	return &model.Meeting{
		ID:          "m-1",
		Topic:       "Weekly sync",
		Description: "Agenda",
		StartTime:   time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
		Duration:    60,
	}
}

func TestClient_CreateSession_CachesToken(t *testing.T) {
	provider := newFakeProvider(t)
	c := NewClient(provider.config(), nil)
	ctx := context.Background()

	params := NewSessionParams(testMeeting(), "UTC", "", nil)
	remote, err := c.CreateSession(ctx, testAccount(), params)
	require.NoError(t, err)
	assert.Equal(t, "85746065432", remote.ID.String())
	assert.Equal(t, "https://provider.test/j/85746065432", remote.JoinURL)

	settings := provider.lastBody["settings"].(map[string]any)
	assert.Equal(t, false, settings["waiting_room"])
	assert.Equal(t, true, settings["join_before_host"])
	assert.EqualValues(t, ScheduledSessionType, provider.lastBody["type"])
	assert.Equal(t, "2025-03-10T09:00:00Z", provider.lastBody["start_time"])

	_, err = c.ListSessions(ctx, testAccount())
	require.NoError(t, err)

	assert.EqualValues(t, 1, atomic.LoadInt32(&provider.tokenCalls))
}

func TestClient_RefreshesTokenOn401(t *testing.T) {
	provider := newFakeProvider(t)
	c := NewClient(provider.config(), nil)
	ctx := context.Background()

	_, err := c.ListSessions(ctx, testAccount())
	require.NoError(t, err)

	atomic.StoreInt32(&provider.rejectNext, 1)
	_, err = c.ListSessions(ctx, testAccount())
	require.NoError(t, err)

	assert.EqualValues(t, 2, atomic.LoadInt32(&provider.tokenCalls))
	assert.Equal(t, "Bearer token-2", provider.lastAuth)
}

func TestClient_RetriesOnlyOnce(t *testing.T) {
	provider := newFakeProvider(t)
	c := NewClient(provider.config(), nil)

	atomic.StoreInt32(&provider.rejectNext, 2)
	_, err := c.ListSessions(context.Background(), testAccount())

	var remote *confErrors.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
	assert.Equal(t, "Invalid access token.", remote.Message)
}

func TestClient_RemoteError(t *testing.T) {
	provider := newFakeProvider(t)
	provider.status = http.StatusNotFound
	c := NewClient(provider.config(), nil)

	err := c.DeleteSession(context.Background(), testAccount(), "404")
	assert.True(t, confErrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "Meeting does not exist.")
}

func TestClient_MissingCredentials(t *testing.T) {
	provider := newFakeProvider(t)
	c := NewClient(provider.config(), nil)

	account := testAccount()
	account.ClientSecret = ""
	err := c.Authenticate(context.Background(), account)
	assert.ErrorIs(t, err, confErrors.ErrCredentialsMissing)
	assert.Zero(t, atomic.LoadInt32(&provider.tokenCalls))
}

func TestClient_SummaryPathIsDoubleEncoded(t *testing.T) {
	provider := newFakeProvider(t)
	c := NewClient(provider.config(), nil)

	summary, err := c.GetSessionSummary(context.Background(), testAccount(), "ab/c+d==")
	require.NoError(t, err)
	assert.Equal(t, "/v2/meetings/ab%2Fc%2Bd%3D%3D/summary", provider.lastPath)
	assert.Equal(t, "Budget review\n\nDecisions: Approved", summary.Content())
}

func TestClient_PastSessionDetails(t *testing.T) {
	provider := newFakeProvider(t)
	c := NewClient(provider.config(), nil)

	details, err := c.GetPastSessionDetails(context.Background(), testAccount(), "85746065432")
	require.NoError(t, err)
	assert.Equal(t, 4, details.ParticipantsCount)
	assert.Equal(t, 55, details.TotalMinutes)
}

func TestTokenCache_SharesConcurrentRefresh(t *testing.T) {
	cache := NewTokenCache(4, time.Minute, time.Second)
	var calls int32
	release := make(chan struct{})

	fetch := func(context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "shared", nil
	}

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := cache.Token(context.Background(), "acc", false, fetch)
			assert.NoError(t, err)
			results[i] = token
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}

	token, ok := cache.Get("acc")
	assert.True(t, ok)
	assert.Equal(t, "shared", token)

	cache.Forget("acc")
	_, ok = cache.Get("acc")
	assert.False(t, ok)
}

func TestTokenCache_CallerCancelDoesNotFailSharedRefresh(t *testing.T) {
	cache := NewTokenCache(4, time.Minute, time.Second)
	started := make(chan struct{})
	release := make(chan struct{})

	fetch := func(ctx context.Context) (string, error) {
		close(started)
		select {
		case <-release:
			return "fresh", nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.Token(firstCtx, "acc", false, fetch)
		firstErr <- err
	}()
	<-started

	type result struct {
		token string
		err   error
	}
	second := make(chan result, 1)
	go func() {
		token, err := cache.Token(context.Background(), "acc", false, fetch)
		second <- result{token, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	close(release)
	res := <-second
	require.NoError(t, res.err)
	assert.Equal(t, "fresh", res.token)

	token, ok := cache.Get("acc")
	assert.True(t, ok)
	assert.Equal(t, "fresh", token)
}

func TestTokenCache_FetchTimeout(t *testing.T) {
	cache := NewTokenCache(4, time.Minute, 20*time.Millisecond)

	_, err := cache.Token(context.Background(), "acc", false, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	_, ok := cache.Get("acc")
	assert.False(t, ok)
}

func TestTokenCache_Expires(t *testing.T) {
	cache := NewTokenCache(4, 10*time.Millisecond, time.Second)
	_, err := cache.Token(context.Background(), "acc", false, func(context.Context) (string, error) { return "t", nil })
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	_, ok := cache.Get("acc")
	assert.False(t, ok)
}

func TestRecordings_PlayURL(t *testing.T) {
	r := Recordings{RecordingFiles: []RecordingFile{
		{FileType: "M4A", PlayURL: "https://audio"},
		{FileType: "MP4", PlayURL: "https://video"},
	}, Password: "pw"}
	assert.Equal(t, "https://video", r.PlayURL())
	assert.Equal(t, "pw", r.Passcode())

	r.ShareURL = "https://share"
	r.RecordingPlayPasscode = "play"
	assert.Equal(t, "https://share", r.PlayURL())
	assert.Equal(t, "play", r.Passcode())
}
