package application

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
)

const (
	// qrPollInterval is how often a pending login attempt is polled.
	qrPollInterval = 2 * time.Second

	// qrSessionTimeout bounds a session's lifetime; passport QR codes
	// expire upstream after about three minutes anyway.
	qrSessionTimeout = 3 * time.Minute
)

// QRSessionState is the panel-visible lifecycle of an acquisition session.
// It extends the upstream QR states with "failed", which covers save or
// validation errors after a confirmed scan.
type QRSessionState string

const (
	QRSessionPending   QRSessionState = "pending"
	QRSessionScanned   QRSessionState = "scanned"
	QRSessionConfirmed QRSessionState = "confirmed"
	QRSessionExpired   QRSessionState = "expired"
	QRSessionFailed    QRSessionState = "failed"
)

// QRSessionInfo is a snapshot of one acquisition session.
type QRSessionInfo struct {
	ID    string
	QRURL string
	State QRSessionState
	Error string
}

// qrSession is one in-flight QR login attempt.
type qrSession struct {
	id     string
	qr     *model.QRCode
	cancel context.CancelFunc

	mu    sync.Mutex
	state QRSessionState
	err   string
}

func (s *qrSession) snapshot() QRSessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return QRSessionInfo{ID: s.id, QRURL: s.qr.URL, State: s.state, Error: s.err}
}

func (s *qrSession) setState(state QRSessionState, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.err = errMsg
}

func (s *qrSession) terminal() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == QRSessionConfirmed || s.state == QRSessionExpired || s.state == QRSessionFailed
}

// QRLoginService runs QR-code cookie acquisition sessions. Each session
// polls the passport API in its own goroutine until the code is confirmed,
// expires, or the session is torn down; a confirmed cookie is handed to the
// SettingsService for validation and persistence.
type QRLoginService struct {
	client   driven.QRLoginClient
	settings *SettingsService
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]*qrSession
}

// NewQRLoginService creates a QRLoginService with all required dependencies.
func NewQRLoginService(client driven.QRLoginClient, settings *SettingsService, logger *slog.Logger) *QRLoginService {
	return &QRLoginService{
		client:   client,
		settings: settings,
		logger:   logger,
		sessions: make(map[string]*qrSession),
	}
}

// Begin starts a new acquisition session and returns its initial snapshot.
// The poll goroutine is detached from the request context so it survives the
// HTTP response; it is bounded by qrSessionTimeout and by Cleanup.
func (svc *QRLoginService) Begin(ctx context.Context) (QRSessionInfo, error) {
	qr, err := svc.client.GenerateQRCode(ctx)
	if err != nil {
		return QRSessionInfo{}, fmt.Errorf("start qr login: %w", err)
	}

	sessCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), qrSessionTimeout)

	session := &qrSession{
		id:     uuid.NewString(),
		qr:     qr,
		cancel: cancel,
		state:  QRSessionPending,
	}

	svc.mu.Lock()
	svc.pruneLocked()
	svc.sessions[session.id] = session
	svc.mu.Unlock()

	go svc.poll(sessCtx, session)

	svc.logger.Info("qr login session started", "session_id", session.id)
	return session.snapshot(), nil
}

// Session returns a snapshot of the session with the given id.
func (svc *QRLoginService) Session(id string) (QRSessionInfo, bool) {
	svc.mu.Lock()
	session, ok := svc.sessions[id]
	svc.mu.Unlock()
	if !ok {
		return QRSessionInfo{}, false
	}
	return session.snapshot(), true
}

// Cleanup tears down every session, cancelling their poll goroutines. It is
// called on shutdown.
func (svc *QRLoginService) Cleanup() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for id, session := range svc.sessions {
		session.cancel()
		delete(svc.sessions, id)
	}
}

// pruneLocked drops finished sessions. Caller holds svc.mu.
func (svc *QRLoginService) pruneLocked() {
	for id, session := range svc.sessions {
		if session.terminal() {
			session.cancel()
			delete(svc.sessions, id)
		}
	}
}

// poll drives one session to completion. complete runs at most once, and
// only on confirmation.
func (svc *QRLoginService) poll(ctx context.Context, session *qrSession) {
	defer session.cancel()

	ticker := time.NewTicker(qrPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if !session.terminal() {
				session.setState(QRSessionExpired, "")
			}
			return
		case <-ticker.C:
			state, cookie, err := svc.client.PollQRCode(ctx, session.qr.Key)
			if err != nil {
				svc.logger.Error("qr poll failed", "session_id", session.id, "error", err)
				session.setState(QRSessionFailed, err.Error())
				return
			}

			switch state {
			case model.QRStateWaiting:
				// keep polling
			case model.QRStateScanned:
				session.setState(QRSessionScanned, "")
			case model.QRStateExpired:
				session.setState(QRSessionExpired, "")
				return
			case model.QRStateConfirmed:
				svc.complete(ctx, session, cookie)
				return
			}
		}
	}
}

// complete hands the acquired cookie to the settings service, recording the
// outcome on the session.
func (svc *QRLoginService) complete(ctx context.Context, session *qrSession, cookie string) {
	if _, err := svc.settings.HandleAcquiredCookie(ctx, cookie); err != nil {
		svc.logger.Error("acquired cookie rejected", "session_id", session.id, "error", err)
		session.setState(QRSessionFailed, err.Error())
		return
	}

	session.setState(QRSessionConfirmed, "")
}
