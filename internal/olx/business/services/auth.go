package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/internal/olx/business/models/dto/response"
	"olxmarket_api/pkg/logger"
)

// ShopCredentialStore is the persistence the auth engine needs: reading a
// shop's credentials and swapping its cached token under a version check.
type ShopCredentialStore interface {
	GetShop(ctx context.Context, shopID int64) (*models.Shop, error)
	// SwapToken replaces the token only when the stored version still equals
	// expectedVersion; it reports whether the swap happened.
	SwapToken(ctx context.Context, shopID int64, token models.Token, expectedVersion int64) (bool, error)
}

// OlxAuth exchanges shop credentials for bearer tokens and caches them on
// the shop row. Only this engine writes the token; every other operation
// reads it and re-authenticates transparently on expiry.
type OlxAuth struct {
	shops   ShopCredentialStore
	baseURL string
	client  *http.Client
	log     logger.Logger
}

func NewOlxAuth(shops ShopCredentialStore, baseURL string, log logger.Logger) *OlxAuth {
	return &OlxAuth{
		shops:   shops,
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     log,
	}
}

// Token returns a usable bearer token for the shop, refreshing it when it is
// near expiry.
func (a *OlxAuth) Token(ctx context.Context, shopID int64) (string, error) {
	shop, err := a.shops.GetShop(ctx, shopID)
	if err != nil {
		return "", fmt.Errorf("loading shop %d: %w", shopID, err)
	}
	if !shop.Token.Expired(time.Now()) {
		return shop.Token.AccessToken, nil
	}
	return a.Refresh(ctx, shopID)
}

// Refresh performs the credential exchange and swaps the cached token with a
// compare-and-swap on its version. When a concurrent refresh wins the race,
// the winner's token is used instead of issuing yet another one.
func (a *OlxAuth) Refresh(ctx context.Context, shopID int64) (string, error) {
	shop, err := a.shops.GetShop(ctx, shopID)
	if err != nil {
		return "", fmt.Errorf("loading shop %d: %w", shopID, err)
	}

	authResp, err := a.exchange(ctx, shop)
	if err != nil {
		return "", err
	}

	token := models.Token{
		AccessToken: authResp.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(authResp.ExpiresIn) * time.Second),
		Version:     shop.Token.Version + 1,
	}
	swapped, err := a.shops.SwapToken(ctx, shopID, token, shop.Token.Version)
	if err != nil {
		return "", fmt.Errorf("storing token for shop %d: %w", shopID, err)
	}
	if !swapped {
		current, err := a.shops.GetShop(ctx, shopID)
		if err != nil {
			return "", err
		}
		a.log.Log("concurrent token refresh for shop %d, using winner's token", shopID)
		return current.Token.AccessToken, nil
	}
	return token.AccessToken, nil
}

func (a *OlxAuth) exchange(ctx context.Context, shop *models.Shop) (*response.AuthResponse, error) {
	payload, err := json.Marshal(map[string]string{
		"username": shop.OlxLogin,
		"password": shop.OlxSecret,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/auth/login", bytes.NewBuffer(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, &AuthError{ShopID: shop.ID, Err: fmt.Errorf("status %s", resp.Status)}
	case resp.StatusCode != http.StatusOK:
		return nil, &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("status %s", resp.Status)}
	}

	var authResp response.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return nil, fmt.Errorf("decoding auth response: %w", err)
	}
	if authResp.AccessToken == "" {
		return nil, &AuthError{ShopID: shop.ID, Err: fmt.Errorf("empty token in response")}
	}
	return &authResp, nil
}
