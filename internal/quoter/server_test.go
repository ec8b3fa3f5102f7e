package quoter

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func testRequest(quoteID string) QuoteRequest {
	return QuoteRequest{
		RequestID:       "test-request-id",
		TokenInChainID:  1,
		TokenOutChainID: 2,
		Swapper:         "test-swapper-address",
		TokenIn:         "test-token-in-address",
		TokenOut:        "test-token-out-address",
		Amount:          "100",
		Type:            1,
		QuoteID:         quoteID,
	}
}

func postQuote(t *testing.T, server *httptest.Server, request QuoteRequest) *http.Response {
	t.Helper()
	payload, err := json.Marshal(request)
	require.NoError(t, err)
	response, err := http.Post(server.URL+"/quote", "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return response
}

// No subscriber responds within the window: HTTP 200, body "ok".
func TestQuoteTimeout(t *testing.T) {
	quoterServer := NewServer(nil, zerolog.Nop())
	httpServer := httptest.NewServer(quoterServer.Router())
	defer httpServer.Close()

	start := time.Now()
	response := postQuote(t, httpServer, testRequest("X"))
	defer response.Body.Close()

	assert.Equal(t, http.StatusOK, response.StatusCode)
	var body bytes.Buffer
	_, err := body.ReadFrom(response.Body)
	require.NoError(t, err)
	assert.Equal(t, `"ok"`, strings.TrimSpace(body.String()))
	assert.GreaterOrEqual(t, time.Since(start), ResponseTimeout)
}

// Only the response matching the request's quoteId is returned; others are
// ignored.
func TestQuoteMatchByID(t *testing.T) {
	quoterServer := NewServer(nil, zerolog.Nop())
	httpServer := httptest.NewServer(quoterServer.Router())
	defer httpServer.Close()

	// Subscriber answers every request twice: first with the wrong id,
	// then with the right one.
	go func() {
		for request := range quoterServer.Requests() {
			wrong := QuoteResponse{QuoteID: "41", RequestID: request.RequestID}
			quoterServer.Respond(wrong)

			right := QuoteResponse{
				ChainID:   request.TokenInChainID,
				AmountIn:  request.Amount,
				AmountOut: request.Amount,
				Filler:    "test-filler",
				RequestID: request.RequestID,
				Swapper:   request.Swapper,
				TokenIn:   request.TokenIn,
				TokenOut:  request.TokenOut,
				QuoteID:   request.QuoteID,
			}
			quoterServer.Respond(right)
		}
	}()

	response := postQuote(t, httpServer, testRequest("42"))
	defer response.Body.Close()
	require.Equal(t, http.StatusOK, response.StatusCode)

	var quote QuoteResponse
	require.NoError(t, json.NewDecoder(response.Body).Decode(&quote))
	assert.Equal(t, "42", quote.QuoteID)
	assert.Equal(t, "test-filler", quote.Filler)
	assert.Equal(t, "100", quote.AmountIn)
}

// The wire format uses camelCase names, with the literal "type_" oddity.
func TestWireFormat(t *testing.T) {
	payload, err := json.Marshal(testRequest("7"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(payload, &fields))
	for _, key := range []string{
		"requestId", "tokenInChainId", "tokenOutChainId", "swapper",
		"tokenIn", "tokenOut", "amount", "type_", "quoteId",
	} {
		assert.Contains(t, fields, key)
	}

	response, err := json.Marshal(QuoteResponse{ChainID: 1, QuoteID: "7"})
	require.NoError(t, err)
	var responseFields map[string]any
	require.NoError(t, json.Unmarshal(response, &responseFields))
	for _, key := range []string{
		"chainId", "amountIn", "amountOut", "filler", "requestId",
		"swapper", "tokenIn", "tokenOut", "quoteId",
	} {
		assert.Contains(t, responseFields, key)
	}
}

func TestMalformedRequestRejected(t *testing.T) {
	quoterServer := NewServer(nil, zerolog.Nop())
	httpServer := httptest.NewServer(quoterServer.Router())
	defer httpServer.Close()

	response, err := http.Post(httpServer.URL+"/quote", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	defer response.Body.Close()
	assert.Equal(t, http.StatusBadRequest, response.StatusCode)
}

// Concurrent requests each rendezvous with their own quote.
func TestConcurrentRequests(t *testing.T) {
	quoterServer := NewServer(nil, zerolog.Nop())
	httpServer := httptest.NewServer(quoterServer.Router())
	defer httpServer.Close()

	go func() {
		for request := range quoterServer.Requests() {
			quoterServer.Respond(QuoteResponse{QuoteID: request.QuoteID, Filler: "f"})
		}
	}()

	const n = 5
	results := make(chan string, n)
	for i := 0; i < n; i++ {
		id := string(rune('a' + i))
		go func() {
			payload, _ := json.Marshal(testRequest(id))
			response, err := http.Post(httpServer.URL+"/quote", "application/json", bytes.NewReader(payload))
			if err != nil {
				results <- err.Error()
				return
			}
			defer response.Body.Close()
			var quote QuoteResponse
			if err := json.NewDecoder(response.Body).Decode(&quote); err != nil {
				results <- "decode error"
				return
			}
			results <- quote.QuoteID
		}()

		// Stagger slightly so broadcasts interleave.
		time.Sleep(5 * time.Millisecond)
	}

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		seen[<-results] = true
	}
	for i := 0; i < n; i++ {
		assert.True(t, seen[string(rune('a'+i))], "missing quote %c", 'a'+i)
	}
}
