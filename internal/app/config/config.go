package config

type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	SecretKey   string `env:"SECRET_KEY"`

	RedisAddr       string `env:"REDIS_ADDR"`
	ListingCacheTTL int    `env:"LISTING_CACHE_TTL"` // seconds, 0 disables the cache

	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	EventsTopic  string   `env:"EVENTS_TOPIC"`

	RazorpayKeyID      string `env:"RAZORPAY_KEY_ID"`
	RazorpayKeySecret  string `env:"RAZORPAY_KEY_SECRET"`
	PaypalClientID     string `env:"PAYPAL_CLIENT_ID"`
	PaypalClientSecret string `env:"PAYPAL_CLIENT_SECRET"`
	GatewayTimeout     int    `env:"GATEWAY_TIMEOUT"` // seconds

	// Featured placement price charged to listing owners.
	FeaturedPrice int64 `env:"FEATURED_PRICE"`
	FeaturedDays  int   `env:"FEATURED_DAYS"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:","`

	LogLevel  string `env:"LOG_LEVEL"`
	LogPretty bool   `env:"LOG_PRETTY"`
}

// Notifier configures the cmd/notifier binary.
type Notifier struct {
	KafkaBrokers  []string `env:"KAFKA_BROKERS" envSeparator:","`
	EventsTopic   string   `env:"EVENTS_TOPIC"`
	ConsumerGroup string   `env:"CONSUMER_GROUP"`
	Workers       int      `env:"NOTIFIER_WORKERS"`

	TelegramToken string `env:"TELEGRAM_TOKEN"`
	AdminChatID   int64  `env:"ADMIN_CHAT_ID"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogPretty bool   `env:"LOG_PRETTY"`
}
