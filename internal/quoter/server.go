package quoter

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/sector-fi/barter-mono/internal/monitor"
)

// DefaultAddr is where the quoter listens unless configured otherwise.
const DefaultAddr = "127.0.0.1:8080"

// ResponseTimeout bounds how long a request waits for its matching quote.
const ResponseTimeout = 200 * time.Millisecond

// Server fans inbound quote requests to a subscriber and rendezvouses each
// HTTP request with the response carrying its quoteId.
type Server struct {
	requests  chan QuoteRequest
	responses *broadcast
	timeout   time.Duration
	metrics   *monitor.Metrics
	log       zerolog.Logger
}

// NewServer builds the quoter with the protocol's 200ms timeout.
func NewServer(metrics *monitor.Metrics, log zerolog.Logger) *Server {
	return &Server{
		requests:  make(chan QuoteRequest, 1024),
		responses: newBroadcast(),
		timeout:   ResponseTimeout,
		metrics:   metrics,
		log:       log.With().Str("component", "quoter").Logger(),
	}
}

// Requests is the stream the external quote producer consumes.
func (s *Server) Requests() <-chan QuoteRequest {
	return s.requests
}

// Respond publishes a quote back toward whichever request is waiting on its
// quoteId.
func (s *Server) Respond(response QuoteResponse) {
	s.responses.publish(response)
}

// Router builds the gin handler tree.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.POST("/quote", s.handleQuote)
	return router
}

// Run serves until the listener fails. Blocking; callers run it on its own
// goroutine.
func (s *Server) Run(addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	s.log.Info().Str("addr", addr).Msg("quoter listening")
	return s.Router().Run(addr)
}

// handleQuote implements the rendezvous: forward the request, then wait up
// to the timeout for a broadcast response whose quoteId matches. Responses
// for other requests are ignored. Timeout and closed-channel failures both
// degrade to HTTP 200 "ok", the protocol's "no quote" signal.
func (s *Server) handleQuote(c *gin.Context) {
	var request QuoteRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.metrics.QuoteRequest()

	responses, unsubscribe := s.responses.subscribe(16)
	defer unsubscribe()

	// Hand the request to the subscriber after subscribing, so a fast
	// responder cannot win the race against our own subscription.
	select {
	case s.requests <- request:
	default:
		s.log.Warn().Str("quote_id", request.QuoteID).Msg("request queue full; dropping quote request")
		s.metrics.QuoteTimeout()
		c.JSON(http.StatusOK, "ok")
		return
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	for {
		select {
		case response, ok := <-responses:
			if !ok {
				s.metrics.QuoteTimeout()
				c.JSON(http.StatusOK, "ok")
				return
			}
			if response.QuoteID != request.QuoteID {
				continue
			}
			c.JSON(http.StatusOK, response)
			return

		case <-timer.C:
			s.metrics.QuoteTimeout()
			c.JSON(http.StatusOK, "ok")
			return
		}
	}
}
