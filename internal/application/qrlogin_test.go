package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zihaowei/bilipanel/internal/domain/model"
)

// --- Mock implementations for QRLoginService tests ---

type pollResult struct {
	state  model.QRState
	cookie string
	err    error
}

type mockQRLoginClient struct {
	generateErr error

	mu    sync.Mutex
	polls []pollResult
}

func (m *mockQRLoginClient) GenerateQRCode(_ context.Context) (*model.QRCode, error) {
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &model.QRCode{
		URL: "https://passport.bilibili.com/h5-app/passport/login/scan?qrcode_key=testkey",
		Key: "testkey",
	}, nil
}

// PollQRCode consumes the scripted results in order; the last one repeats.
func (m *mockQRLoginClient) PollQRCode(_ context.Context, _ string) (model.QRState, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.polls[0]
	if len(m.polls) > 1 {
		m.polls = m.polls[1:]
	}
	return result.state, result.cookie, result.err
}

// --- Helper functions ---

func newTestQRLogin(client *mockQRLoginClient) (*QRLoginService, *RuntimeConfig, *mockCookieStore) {
	settings, runtime, cookies, _, _ := newTestSettings()
	svc := NewQRLoginService(client, settings, discardLogger())
	return svc, runtime, cookies
}

func waitForState(t *testing.T, svc *QRLoginService, id string, want QRSessionState) QRSessionInfo {
	t.Helper()
	var info QRSessionInfo
	require.Eventually(t, func() bool {
		snapshot, ok := svc.Session(id)
		if !ok {
			return false
		}
		info = snapshot
		return snapshot.State == want
	}, 15*time.Second, 100*time.Millisecond, "session never reached state %s", want)
	return info
}

// --- Session lifecycle ---

func TestQRLogin_Begin(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{{state: model.QRStateWaiting}}}
	svc, _, _ := newTestQRLogin(client)
	defer svc.Cleanup()

	info, err := svc.Begin(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, info.ID)
	assert.Contains(t, info.QRURL, "qrcode_key=testkey")
	assert.Equal(t, QRSessionPending, info.State)

	got, ok := svc.Session(info.ID)
	require.True(t, ok)
	assert.Equal(t, info.ID, got.ID)
}

func TestQRLogin_BeginGenerateFailure(t *testing.T) {
	client := &mockQRLoginClient{generateErr: errors.New("passport unreachable")}
	svc, _, _ := newTestQRLogin(client)

	_, err := svc.Begin(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "passport unreachable")
}

func TestQRLogin_UnknownSession(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{{state: model.QRStateWaiting}}}
	svc, _, _ := newTestQRLogin(client)

	_, ok := svc.Session("no-such-session")
	assert.False(t, ok)
}

func TestQRLogin_ConfirmedSavesCookie(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{
		{state: model.QRStateWaiting},
		{state: model.QRStateScanned},
		{state: model.QRStateConfirmed, cookie: wellFormedCookie},
	}}
	svc, runtime, cookies := newTestQRLogin(client)
	defer svc.Cleanup()

	info, err := svc.Begin(context.Background())
	require.NoError(t, err)

	waitForState(t, svc, info.ID, QRSessionConfirmed)
	assert.True(t, runtime.HasCookie())
	require.Len(t, cookies.saveCalls, 1, "a confirmed scan persists the cookie exactly once")
	assert.Equal(t, wellFormedCookie, cookies.saveCalls[0])
}

func TestQRLogin_Expired(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{{state: model.QRStateExpired}}}
	svc, runtime, cookies := newTestQRLogin(client)
	defer svc.Cleanup()

	info, err := svc.Begin(context.Background())
	require.NoError(t, err)

	waitForState(t, svc, info.ID, QRSessionExpired)
	assert.False(t, runtime.HasCookie())
	assert.Empty(t, cookies.saveCalls)
}

func TestQRLogin_MalformedAcquiredCookie(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{
		{state: model.QRStateConfirmed, cookie: "SESSDATA=only"},
	}}
	svc, _, cookies := newTestQRLogin(client)
	defer svc.Cleanup()

	info, err := svc.Begin(context.Background())
	require.NoError(t, err)

	got := waitForState(t, svc, info.ID, QRSessionFailed)
	assert.NotEmpty(t, got.Error)
	assert.Empty(t, cookies.saveCalls)
}

func TestQRLogin_PollFailure(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{
		{err: errors.New("network down")},
	}}
	svc, _, _ := newTestQRLogin(client)
	defer svc.Cleanup()

	info, err := svc.Begin(context.Background())
	require.NoError(t, err)

	got := waitForState(t, svc, info.ID, QRSessionFailed)
	assert.Contains(t, got.Error, "network down")
}

func TestQRLogin_CleanupCancelsSessions(t *testing.T) {
	client := &mockQRLoginClient{polls: []pollResult{{state: model.QRStateWaiting}}}
	svc, _, _ := newTestQRLogin(client)

	_, err := svc.Begin(context.Background())
	require.NoError(t, err)
	_, err = svc.Begin(context.Background())
	require.NoError(t, err)

	svc.Cleanup()

	svc.mu.Lock()
	remaining := len(svc.sessions)
	svc.mu.Unlock()
	assert.Zero(t, remaining)
}
