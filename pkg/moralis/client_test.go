package moralis

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-arlo/go-arlo-swarm/internal/resilience"
)

func TestTokenMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/token/mainnet/mint123/metadata", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-API-Key"))
		_, _ = w.Write([]byte(`{
			"mint": "mint123",
			"name": "Test Token",
			"symbol": "TST",
			"totalSupplyFormatted": "1000000000",
			"mintAuthority": "",
			"freezeAuthority": "frz456"
		}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	meta, err := c.TokenMetadata(context.Background(), "mint123")
	require.NoError(t, err)
	assert.Equal(t, "TST", meta.Symbol)
	assert.Equal(t, "1000000000", meta.TotalSupply)
	assert.Empty(t, meta.MintAuthority)
	assert.Equal(t, "frz456", meta.FreezeAuthority)
}

func TestTokenPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/mainnet/mint123/pairs", r.URL.Path)
		_, _ = w.Write([]byte(`{"pairs": [
			{"pairAddress": "pair1", "exchangeName": "Raydium", "liquidityUsd": 480000, "volume24hrUsd": 95000},
			{"pairAddress": "pair2", "exchangeName": "Orca", "liquidityUsd": 22000, "volume24hrUsd": 4100}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	pairs, err := c.TokenPairs(context.Background(), "mint123")
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "Raydium", pairs[0].ExchangeName)
	assert.Equal(t, 480000.0, pairs[0].LiquidityUSD)
}

func TestTokenSwaps_Pagination(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/token/mainnet/mint123/swaps", r.URL.Path)
		assert.Equal(t, "ASC", r.URL.Query().Get("order"))
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`{"cursor": "next-page", "result": [
				{"transactionHash": "tx1", "transactionType": "buy", "walletAddress": "w1",
				 "blockTimestamp": "2026-08-01T12:00:00Z", "tokenAmount": "1500.5", "totalValueUsd": 320, "slot": 100}
			]}`))
		case "next-page":
			_, _ = w.Write([]byte(`{"cursor": "", "result": [
				{"transactionHash": "tx2", "transactionType": "sell", "walletAddress": "w2",
				 "blockTimestamp": "2026-08-01T12:00:05Z", "tokenAmount": "800", "totalValueUsd": 170, "slot": 101}
			]}`))
		default:
			t.Fatalf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	swaps, err := c.TokenSwaps(context.Background(), SwapsRequest{Address: "mint123", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, swaps, 2)
	assert.Equal(t, "tx1", swaps[0].TransactionHash)
	assert.Equal(t, 1500.5, swaps[0].TokenAmount)
	assert.Equal(t, "w2", swaps[1].WalletAddress)
}

func TestTokenSwaps_Window(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2026-08-01T00:00:00Z", r.URL.Query().Get("fromDate"))
		assert.Equal(t, "2026-08-01T00:05:00Z", r.URL.Query().Get("toDate"))
		_, _ = w.Write([]byte(`{"cursor": "", "result": []}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	swaps, err := c.TokenSwaps(context.Background(), SwapsRequest{
		Address:  "mint123",
		FromDate: from,
		ToDate:   from.Add(5 * time.Minute),
	})
	require.NoError(t, err)
	assert.Empty(t, swaps)
}

func TestTopHolders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/token/mainnet/mint123/top-holders", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"result": [
			{"ownerAddress": "whale1", "balanceFormatted": "52000000", "percentageRelativeToTotalSupply": 5.2, "isContract": false},
			{"ownerAddress": "pool1", "balanceFormatted": "31000000", "percentageRelativeToTotalSupply": 3.1, "isContract": true}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL))
	holders, err := c.TopHolders(context.Background(), "mint123", 10)
	require.NoError(t, err)
	require.Len(t, holders, 2)
	assert.Equal(t, "whale1", holders[0].OwnerAddress)
	assert.Equal(t, 5.2, holders[0].SupplyPct)
	assert.True(t, holders[1].IsContract)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate_limit", http.StatusTooManyRequests, true},
		{"server_error", http.StatusServiceUnavailable, true},
		{"not_found", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"message": "nope"}`))
			}))
			defer srv.Close()

			c := NewClient("test-key", WithBaseURL(srv.URL))
			_, err := c.TokenMetadata(context.Background(), "mint123")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "unexpected status")
			assert.Equal(t, tt.transient, resilience.IsTransient(err))
		})
	}
}

func TestRequiresAddress(t *testing.T) {
	c := NewClient("test-key")

	_, err := c.TokenMetadata(context.Background(), "")
	require.Error(t, err)

	_, err = c.TokenPairs(context.Background(), "")
	require.Error(t, err)

	_, err = c.TokenSwaps(context.Background(), SwapsRequest{})
	require.Error(t, err)

	_, err = c.TopHolders(context.Background(), "", 10)
	require.Error(t, err)
}
