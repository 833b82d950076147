package display

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"guard-relay/shared/middleware"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TokenProvider возвращает токены устройств пользователя.
type TokenProvider interface {
	GetUserDeviceTokens(ctx context.Context, userID uuid.UUID) ([]models.DeviceTokenInfo, error)
}

// HTTPClient интерфейс для *http.Client для мокирования
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type httpTokenProvider struct {
	client HTTPClient
	url    string // базовый URL auth-сервиса, например http://auth-service:8081
	logger *zap.Logger
	secret string
}

// NewHTTPTokenProvider создает провайдер токенов через HTTP. Без url возвращается заглушка.
func NewHTTPTokenProvider(client HTTPClient, url string, logger *zap.Logger, interServiceSecret string) TokenProvider {
	if url == "" {
		logger.Warn("Token service URL is not set, using stub TokenProvider")
		return &stubTokenProvider{logger: logger.Named("stub_token_provider")}
	}
	if interServiceSecret == "" {
		logger.Warn("Inter-service secret is not set, token service may reject requests")
	}
	logger.Info("HTTP token provider initialized", zap.String("url", url), zap.Bool("secretLoaded", interServiceSecret != ""))
	return &httpTokenProvider{
		client: client,
		url:    url,
		logger: logger.Named("http_token_provider"),
		secret: interServiceSecret,
	}
}

func (p *httpTokenProvider) GetUserDeviceTokens(ctx context.Context, userID uuid.UUID) ([]models.DeviceTokenInfo, error) {
	log := p.logger.With(zap.String("user_id", userID.String()))
	targetURL := fmt.Sprintf("%s/internal/auth/users/%s/device-tokens", p.url, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build token service request: %w", err)
	}
	if p.secret != "" {
		req.Header.Set(middleware.InterServiceTokenHeader, p.secret)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := p.client.Do(req)
	duration := time.Since(start)
	if err != nil {
		log.Error("Token service request failed", zap.Error(err), zap.Duration("duration", duration))
		return nil, fmt.Errorf("token service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error("Token service returned unexpected status", zap.Int("status_code", resp.StatusCode))
		return nil, fmt.Errorf("token service returned status %d", resp.StatusCode)
	}

	var tokens []models.DeviceTokenInfo
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		return nil, fmt.Errorf("failed to decode token service response: %w", err)
	}

	log.Debug("Device tokens received", zap.Int("count", len(tokens)), zap.Duration("duration", duration))
	return tokens, nil
}

type stubTokenProvider struct {
	logger *zap.Logger
}

func (p *stubTokenProvider) GetUserDeviceTokens(ctx context.Context, userID uuid.UUID) ([]models.DeviceTokenInfo, error) {
	p.logger.Debug("Stub TokenProvider returns no tokens", zap.String("user_id", userID.String()))
	return nil, nil
}

// resolveTokens возвращает токены для нужных платформ: явные токены из payload
// (если acceptExplicit) или токены пользователя из провайдера.
func resolveTokens(ctx context.Context, provider TokenProvider, to models.Recipient, acceptExplicit bool, platforms ...string) ([]string, error) {
	if len(to.DeviceTokens) > 0 {
		if !acceptExplicit {
			return nil, nil
		}
		return to.DeviceTokens, nil
	}
	if provider == nil || to.UserID == uuid.Nil {
		return nil, nil
	}
	infos, err := provider.GetUserDeviceTokens(ctx, to.UserID)
	if err != nil {
		return nil, err
	}
	tokens := make([]string, 0, len(infos))
	for _, info := range infos {
		for _, p := range platforms {
			if info.Platform == p {
				tokens = append(tokens, info.Token)
				break
			}
		}
	}
	return tokens, nil
}
