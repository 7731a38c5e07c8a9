package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server configuration
	Port        string
	Environment string
	PublicURL   string

	// Redis configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// PubNub configuration
	PubNubPublishKey   string
	PubNubSubscribeKey string
	PubNubSecretKey    string

	// Purchase hand-off configuration
	PurchaseSessionTTL time.Duration
	CheckoutTimeout    time.Duration

	// VNPay configuration
	VNPay VNPayConfig

	// Image store configuration
	UploadDir      string
	UploadBaseURL  string
	MaxImageWidth  int
	MaxUploadBytes int64

	// Rate limiting
	RateLimitPerMinute int

	// Monitoring
	EnableMetrics bool
}

type VNPayConfig struct {
	PayURL     string `json:"pay_url"`
	QueryURL   string `json:"query_url"`
	TmnCode    string `json:"tmn_code"`
	HashSecret string `json:"hash_secret"`
	ReturnURL  string `json:"return_url"`
	IPNURL     string `json:"ipn_url"`
}

func LoadConfig() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8090"),
		Environment: getEnv("ENVIRONMENT", "development"),
		PublicURL:   getEnv("PUBLIC_URL", "http://localhost:8090"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// PubNub
		PubNubPublishKey:   getEnv("PUBNUB_PUBLISH_KEY", ""),
		PubNubSubscribeKey: getEnv("PUBNUB_SUBSCRIBE_KEY", ""),
		PubNubSecretKey:    getEnv("PUBNUB_SECRET_KEY", ""),

		// Purchase hand-off
		PurchaseSessionTTL: getEnvAsDuration("PURCHASE_SESSION_TTL", "15m"),
		CheckoutTimeout:    getEnvAsDuration("CHECKOUT_TIMEOUT", "10s"),

		// VNPay
		VNPay: VNPayConfig{
			PayURL:     getEnv("VNPAY_PAY_URL", "https://sandbox.vnpayment.vn/paymentv2/vpcpay.html"),
			QueryURL:   getEnv("VNPAY_QUERY_URL", "https://sandbox.vnpayment.vn/merchant_webapi/api/transaction"),
			TmnCode:    getEnv("VNPAY_TMN_CODE", ""),
			HashSecret: getEnv("VNPAY_HASH_SECRET", ""),
			ReturnURL:  getEnv("VNPAY_RETURN_URL", "http://localhost:3000/confirm"),
			IPNURL:     getEnv("VNPAY_IPN_URL", "http://localhost:8090/api/v1/payment/vnpay/ipn"),
		},

		// Image store
		UploadDir:      getEnv("UPLOAD_DIR", "pb_public/uploads"),
		UploadBaseURL:  getEnv("UPLOAD_BASE_URL", "/uploads"),
		MaxImageWidth:  getEnvAsInt("MAX_IMAGE_WIDTH", 1600),
		MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 5242880)),

		// Rate limiting
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
