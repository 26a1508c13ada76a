package document

import "time"

// Config configures the PDF engine.
type Config struct {
	// ChromeURL is the DevTools websocket endpoint of a remote browser.
	// When empty a local headless Chrome is started.
	ChromeURL        string        `env:"PDF_CHROME_URL"`
	ChromePath       string        `env:"PDF_CHROME_PATH"`
	Timeout          time.Duration `env:"PDF_TIMEOUT" envDefault:"30s"`
	BreakerFailures  uint32        `env:"PDF_BREAKER_FAILURES" envDefault:"5"`
	BreakerCooldown  time.Duration `env:"PDF_BREAKER_COOLDOWN" envDefault:"30s"`
	BreakerHalfOpen  uint32        `env:"PDF_BREAKER_HALF_OPEN" envDefault:"1"`
	ArchiveDocuments bool          `env:"PDF_ARCHIVE" envDefault:"true"`
}
