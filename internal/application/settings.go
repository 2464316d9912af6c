package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/zihaowei/bilipanel/internal/domain/model"
	"github.com/zihaowei/bilipanel/internal/domain/port/driven"
	"github.com/zihaowei/bilipanel/internal/metrics"
)

// CookieStatusResult is the derived cookie state shown on the settings panel.
// Cookie carries the stored cookie text whenever one exists so the panel can
// refill its input field.
type CookieStatusResult struct {
	Status model.CookieStatus
	Cookie string
}

// SettingsService mediates the settings panel operations: cookie lifecycle,
// crawler parameter updates, and database maintenance.
type SettingsService struct {
	cookieStore driven.CookieStore
	paramsStore driven.ParamsStore
	maintenance driven.MaintenanceStore
	runtime     *RuntimeConfig
	collector   *metrics.Collector
	logger      *slog.Logger
}

// NewSettingsService creates a SettingsService with all required
// dependencies.
func NewSettingsService(
	cookieStore driven.CookieStore,
	paramsStore driven.ParamsStore,
	maintenance driven.MaintenanceStore,
	runtime *RuntimeConfig,
	collector *metrics.Collector,
	logger *slog.Logger,
) *SettingsService {
	return &SettingsService{
		cookieStore: cookieStore,
		paramsStore: paramsStore,
		maintenance: maintenance,
		runtime:     runtime,
		collector:   collector,
		logger:      logger,
	}
}

// ValidateCookie checks the cookie text structurally without persisting
// anything. Empty input and missing required fields both yield a
// *model.ValidationError.
func (s *SettingsService) ValidateCookie(text string) error {
	if strings.TrimSpace(text) == "" {
		return model.Validationf("cookie is required")
	}

	_, err := model.ParseCookie(text)
	return err
}

// SaveCookie installs and persists a new cookie. The runtime cookie is
// cleared before the new one is validated: a malformed cookie therefore
// leaves the runtime with no cookie at all. This matches the historical
// panel behavior and is deliberate until product says otherwise.
func (s *SettingsService) SaveCookie(ctx context.Context, text string) (*CookieStatusResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.Validationf("cookie is required")
	}

	s.runtime.ClearCookie()

	if err := s.runtime.SetCookie(text); err != nil {
		return nil, err
	}

	if err := s.cookieStore.Save(ctx, text); err != nil {
		return nil, fmt.Errorf("save cookie: %w", err)
	}

	s.collector.RecordCookieSave()
	s.logger.Info("cookie saved")
	return s.CookieStatus(ctx)
}

// HandleAcquiredCookie installs and persists a cookie delivered by the QR
// login flow, mirroring SaveCookie without the explicit clear-first step.
func (s *SettingsService) HandleAcquiredCookie(ctx context.Context, text string) (*CookieStatusResult, error) {
	if err := s.runtime.SetCookie(text); err != nil {
		return nil, err
	}

	if err := s.cookieStore.Save(ctx, text); err != nil {
		return nil, fmt.Errorf("save acquired cookie: %w", err)
	}

	s.collector.RecordCookieSave()
	s.logger.Info("cookie acquired via qr login")
	return s.CookieStatus(ctx)
}

// ClearCookie removes the cookie from both the runtime configuration and the
// store. Without confirmation it is a no-op returning
// model.ErrConfirmationRequired.
func (s *SettingsService) ClearCookie(ctx context.Context, confirmed bool) (*CookieStatusResult, error) {
	if !confirmed {
		return nil, model.ErrConfirmationRequired
	}

	s.runtime.ClearCookie()

	if err := s.cookieStore.Clear(ctx); err != nil {
		return nil, fmt.Errorf("clear cookies: %w", err)
	}

	s.collector.RecordCookieClear()
	s.logger.Info("cookie cleared")
	return s.CookieStatus(ctx)
}

// CookieStatus derives the three-way panel status from the store: unset when
// nothing usable is stored, expiring when inside the renewal window, valid
// otherwise.
func (s *SettingsService) CookieStatus(ctx context.Context) (*CookieStatusResult, error) {
	stored, nearExpiry, err := s.cookieStore.GetValid(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cookie status: %w", err)
	}

	switch {
	case stored == nil:
		return &CookieStatusResult{Status: model.CookieStatusUnset}, nil
	case nearExpiry:
		return &CookieStatusResult{Status: model.CookieStatusExpiring, Cookie: stored.Value}, nil
	default:
		return &CookieStatusResult{Status: model.CookieStatusValid, Cookie: stored.Value}, nil
	}
}

// ApplyParams clamps the given parameters to their bounds and writes all
// three as one batch to the runtime configuration and the store, regardless
// of which field changed. DelayMin exceeding DelayMax is accepted.
func (s *SettingsService) ApplyParams(ctx context.Context, params model.CrawlerParams) (model.CrawlerParams, error) {
	clamped := params.Clamped()

	s.runtime.SetParams(clamped)

	if err := s.paramsStore.Set(ctx, clamped); err != nil {
		return model.CrawlerParams{}, fmt.Errorf("persist crawler params: %w", err)
	}

	return clamped, nil
}

// Params returns the live pacing parameters.
func (s *SettingsService) Params() model.CrawlerParams {
	return s.runtime.Params()
}

// ClearDatabase deletes all crawled data. Without confirmation it is a no-op
// returning model.ErrConfirmationRequired.
func (s *SettingsService) ClearDatabase(ctx context.Context, confirmed bool) error {
	if !confirmed {
		return model.ErrConfirmationRequired
	}

	if err := s.maintenance.ClearAllData(ctx); err != nil {
		return fmt.Errorf("clear database: %w", err)
	}

	s.logger.Info("database cleared")
	return nil
}

// BackupDatabase requests a database snapshot. Currently always reports
// model.ErrNotImplemented.
func (s *SettingsService) BackupDatabase(ctx context.Context) error {
	return s.maintenance.Backup(ctx)
}
