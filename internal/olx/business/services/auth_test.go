package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"olxmarket_api/internal/core/models"
	"olxmarket_api/pkg/logger"
)

type fakeShopStore struct {
	shop *models.Shop
	// swapAccepts controls whether the version check passes; a false value
	// simulates a concurrent refresh having bumped the version first.
	swapAccepts bool
	swapCalls   int
}

func (s *fakeShopStore) GetShop(_ context.Context, _ int64) (*models.Shop, error) {
	copied := *s.shop
	return &copied, nil
}

func (s *fakeShopStore) SwapToken(_ context.Context, _ int64, token models.Token, expectedVersion int64) (bool, error) {
	s.swapCalls++
	if !s.swapAccepts || s.shop.Token.Version != expectedVersion {
		return false, nil
	}
	s.shop.Token = token
	return true, nil
}

func testShop() *models.Shop {
	return &models.Shop{ID: 1, OlxLogin: "shop", OlxSecret: "secret"}
}

func authServer(t *testing.T, handler func(w http.ResponseWriter, username, password string)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var creds map[string]string
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			t.Errorf("decoding credentials: %v", err)
		}
		handler(w, creds["username"], creds["password"])
	}))
}

func newTestAuth(store ShopCredentialStore, baseURL string) *OlxAuth {
	return NewOlxAuth(store, baseURL, logger.NewLogger(io.Discard, "[test]"))
}

func TestRefreshExchangesCredentials(t *testing.T) {
	t.Parallel()

	srv := authServer(t, func(w http.ResponseWriter, username, password string) {
		if username != "shop" || password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "fresh-token",
			"expires_in":   3600,
		})
	})
	defer srv.Close()

	store := &fakeShopStore{shop: testShop(), swapAccepts: true}
	token, err := newTestAuth(store, srv.URL).Refresh(context.Background(), 1)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if token != "fresh-token" {
		t.Fatalf("token = %q, want fresh-token", token)
	}
	if store.shop.Token.Version != 1 {
		t.Fatalf("version = %d, want bumped to 1", store.shop.Token.Version)
	}
	if store.shop.Token.Expired(time.Now()) {
		t.Fatal("freshly stored token should not read as expired")
	}
}

func TestRefreshBadCredentialsIsAuthError(t *testing.T) {
	t.Parallel()

	srv := authServer(t, func(w http.ResponseWriter, _, _ string) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	defer srv.Close()

	store := &fakeShopStore{shop: testShop(), swapAccepts: true}
	_, err := newTestAuth(store, srv.URL).Refresh(context.Background(), 1)
	if !IsAuthError(err) {
		t.Fatalf("want AuthError, got %v", err)
	}
	if store.swapCalls != 0 {
		t.Fatal("a failed exchange must not touch the stored token")
	}
}

func TestRefreshServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := authServer(t, func(w http.ResponseWriter, _, _ string) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	store := &fakeShopStore{shop: testShop(), swapAccepts: true}
	_, err := newTestAuth(store, srv.URL).Refresh(context.Background(), 1)
	if !IsTransient(err) {
		t.Fatalf("want TransientError, got %v", err)
	}
}

func TestRefreshLostRaceUsesWinnersToken(t *testing.T) {
	t.Parallel()

	srv := authServer(t, func(w http.ResponseWriter, _, _ string) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "loser-token",
			"expires_in":   3600,
		})
	})
	defer srv.Close()

	shop := testShop()
	// the concurrent winner already stored its token under version 5
	shop.Token = models.Token{
		AccessToken: "winner-token",
		ExpiresAt:   time.Now().Add(time.Hour),
		Version:     5,
	}
	store := &fakeShopStore{shop: shop, swapAccepts: false}

	token, err := newTestAuth(store, srv.URL).Refresh(context.Background(), 1)
	if err != nil {
		t.Fatalf("Refresh after lost race: %v", err)
	}
	if token != "winner-token" {
		t.Fatalf("token = %q, want the winner's token", token)
	}
	if store.shop.Token.AccessToken != "winner-token" {
		t.Fatal("lost race must not overwrite the stored token")
	}
}

func TestTokenSkipsRefreshWhileValid(t *testing.T) {
	t.Parallel()

	var exchanges int
	srv := authServer(t, func(w http.ResponseWriter, _, _ string) {
		exchanges++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "unexpected",
			"expires_in":   3600,
		})
	})
	defer srv.Close()

	shop := testShop()
	shop.Token = models.Token{
		AccessToken: "cached",
		ExpiresAt:   time.Now().Add(time.Hour),
		Version:     1,
	}
	store := &fakeShopStore{shop: shop, swapAccepts: true}

	token, err := newTestAuth(store, srv.URL).Token(context.Background(), 1)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "cached" {
		t.Fatalf("token = %q, want the cached one", token)
	}
	if exchanges != 0 {
		t.Fatalf("exchange endpoint hit %d times for a valid token", exchanges)
	}
}

func TestTokenRefreshesExpired(t *testing.T) {
	t.Parallel()

	srv := authServer(t, func(w http.ResponseWriter, _, _ string) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "renewed",
			"expires_in":   3600,
		})
	})
	defer srv.Close()

	shop := testShop()
	shop.Token = models.Token{
		AccessToken: "old",
		ExpiresAt:   time.Now().Add(-time.Minute),
		Version:     2,
	}
	store := &fakeShopStore{shop: shop, swapAccepts: true}

	token, err := newTestAuth(store, srv.URL).Token(context.Background(), 1)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if token != "renewed" {
		t.Fatalf("token = %q, want renewed", token)
	}
	if store.shop.Token.Version != 3 {
		t.Fatalf("version = %d, want 3", store.shop.Token.Version)
	}
}
