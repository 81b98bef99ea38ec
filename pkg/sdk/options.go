package doseaudit

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	addrs    []string
	password string

	apiKey  string
	baseURL string

	embeddingModel string
	dimensions     int
	chatModel      string

	hnswM           int
	hnswEFConstruct int
	chunkSize       int
	chunkOverlap    int
	topK            int
	tolerance       float64
	callTimeout     time.Duration
	maxRetries      int
	maxConcurrent   int

	logger *zap.Logger
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.addrs = []string{addr}
		c.password = password
	})
}

// WithOpenAI sets the credentials for the embedding and chat providers.
// baseURL may be empty for the public API, or point at any
// OpenAI-compatible endpoint.
func WithOpenAI(apiKey, baseURL string) Option {
	return optionFunc(func(c *clientConfig) {
		c.apiKey = apiKey
		c.baseURL = baseURL
	})
}

// WithEmbeddingModel sets the embedding model and vector dimension.
// Defaults: text-embedding-3-small, 1536.
func WithEmbeddingModel(model string, dimensions int) Option {
	return optionFunc(func(c *clientConfig) {
		c.embeddingModel = model
		c.dimensions = dimensions
	})
}

// WithChatModel sets the chat-completion model used for extraction,
// audit and the chatbot. Default: gpt-4o-mini.
func WithChatModel(model string) Option {
	return optionFunc(func(c *clientConfig) {
		c.chatModel = model
	})
}

// WithHNSW configures vector index parameters (M and EF construction).
// Defaults: M=16, EFConstruct=200.
func WithHNSW(m, efConstruct int) Option {
	return optionFunc(func(c *clientConfig) {
		c.hnswM = m
		c.hnswEFConstruct = efConstruct
	})
}

// WithChunking sets the ingestion chunk size and overlap in characters.
// Defaults: 1000 and 200.
func WithChunking(size, overlap int) Option {
	return optionFunc(func(c *clientConfig) {
		c.chunkSize = size
		c.chunkOverlap = overlap
	})
}

// WithTopK sets how many guideline passages are retrieved per
// validation. Default: 5.
func WithTopK(k int) Option {
	return optionFunc(func(c *clientConfig) {
		c.topK = k
	})
}

// WithTolerance sets the fraction above the computed maximum dose that
// still yields ALERT instead of REJECTED. Default: 0.10.
func WithTolerance(fraction float64) Option {
	return optionFunc(func(c *clientConfig) {
		c.tolerance = fraction
	})
}

// WithModelPolicy sets the per-call timeout, retry count and
// concurrency cap for chat-completion calls.
// Defaults: 30s, 2 retries, 4 concurrent.
func WithModelPolicy(callTimeout time.Duration, maxRetries, maxConcurrent int) Option {
	return optionFunc(func(c *clientConfig) {
		c.callTimeout = callTimeout
		c.maxRetries = maxRetries
		c.maxConcurrent = maxConcurrent
	})
}

// WithLogger enables structured logging for client operations.
// Default: no logging.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}
