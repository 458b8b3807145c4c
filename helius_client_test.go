package gogoblin

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeliusClientGetAddressTransactions(t *testing.T) {
	t.Parallel()

	var captured *http.Request
	client := &HeliusClient{
		BaseURL: "https://api.helius.test",
		APIKey:  "secret",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				captured = req
				return jsonResponse(http.StatusOK, `[
					{
						"signature":"sig1",
						"timestamp":1710547200,
						"nativeTransfers":[{"fromUserAccount":"Owner111","toUserAccount":"Dest111","amount":1500000000}],
						"tokenTransfers":[{"fromUserAccount":"Dest111","toUserAccount":"Owner111","mint":"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v","tokenAmount":12.5}]
					},
					{"signature":"sig2","timestamp":1710550800}
				]`), nil
			}),
		},
	}

	txs, err := client.GetAddressTransactions(context.Background(), "Owner111", 500)
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.Equal(t, http.MethodGet, captured.Method)
	assert.Equal(t, "/v0/addresses/Owner111/transactions", captured.URL.Path)
	assert.Equal(t, "secret", captured.URL.Query().Get("api-key"))
	assert.Equal(t, "100", captured.URL.Query().Get("limit"))

	require.Len(t, txs, 2)
	assert.Equal(t, "sig1", txs[0].Signature)
	assert.Equal(t, int64(1710547200), txs[0].Timestamp)
	require.Len(t, txs[0].NativeTransfers, 1)
	assert.Equal(t, int64(1_500_000_000), txs[0].NativeTransfers[0].Amount)
	require.Len(t, txs[0].TokenTransfers, 1)
	assert.Equal(t, USDCMint, txs[0].TokenTransfers[0].Mint)
	assert.Equal(t, 12.5, txs[0].TokenTransfers[0].TokenAmount)
	assert.Empty(t, txs[1].NativeTransfers)
}

func TestHeliusClientReturnsProviderError(t *testing.T) {
	t.Parallel()

	client := &HeliusClient{
		BaseURL: "https://api.helius.test",
		APIKey:  "secret",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(_ *http.Request) (*http.Response, error) {
				return jsonResponse(http.StatusUnauthorized, `{"error":"invalid api key"}`), nil
			}),
		},
	}

	_, err := client.GetAddressTransactions(context.Background(), "Owner111", 10)
	require.Error(t, err)

	var providerErr *ProviderError
	require.True(t, errors.As(err, &providerErr))
	assert.Equal(t, http.StatusUnauthorized, providerErr.StatusCode)
	assert.Contains(t, providerErr.Body, "invalid api key")
}

func TestHeliusClientBreakerOpensAfterFailures(t *testing.T) {
	t.Parallel()

	var calls int
	client := &HeliusClient{
		BaseURL: "https://api.helius.test",
		APIKey:  "secret",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(_ *http.Request) (*http.Response, error) {
				calls++
				return jsonResponse(http.StatusInternalServerError, "boom"), nil
			}),
		},
		breaker: newProviderBreaker("helius-test"),
	}

	for range 3 {
		_, err := client.GetAddressTransactions(context.Background(), "Owner111", 10)
		require.Error(t, err)
	}

	_, err := client.GetAddressTransactions(context.Background(), "Owner111", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Equal(t, 3, calls)
}

func TestHeliusClientBreakerIgnoresCallerDeadline(t *testing.T) {
	t.Parallel()

	client := &HeliusClient{
		BaseURL: "https://api.helius.test",
		APIKey:  "secret",
		HTTPClient: &http.Client{
			Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
				if err := req.Context().Err(); err != nil {
					return nil, err
				}
				return jsonResponse(http.StatusOK, `[{"signature":"sig1","timestamp":1710547200}]`), nil
			}),
		},
		breaker: newProviderBreaker("helius-deadline-test"),
	}

	expired, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	for range 5 {
		_, err := client.GetAddressTransactions(expired, "Owner111", 10)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrProviderUnavailable)
	}

	txs, err := client.GetAddressTransactions(context.Background(), "Owner111", 10)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "sig1", txs[0].Signature)
}

func TestNewHeliusClientWithoutKey(t *testing.T) {
	t.Parallel()

	assert.Nil(t, NewHeliusClient("https://api.helius.xyz", "", time.Second))
	assert.Nil(t, NewHeliusClient("https://api.helius.xyz", "   ", time.Second))

	client := NewHeliusClient("https://api.helius.xyz/", "key", time.Second)
	require.NotNil(t, client)
	assert.Equal(t, "https://api.helius.xyz", client.BaseURL)
}
