package export

import (
	"os"
	"strconv"
	"time"
)

// Config holds environment-driven rendering settings.
type Config struct {
	PDFEngine       string        `yaml:"pdf_engine"`
	PDFChromiumPath string        `yaml:"pdf_chromium_path"`
	PDFTimeout      time.Duration `yaml:"pdf_timeout"`
	PDFCompress     bool          `yaml:"pdf_compress"`
	PDFTimeZone     string        `yaml:"pdf_timezone"`
	BrandColor      string        `yaml:"brand_color"`
	Footer          string        `yaml:"footer"`
}

const (
	EngineGofpdf   = "gofpdf"
	EngineChromium = "chromium"
)

func LoadConfig() Config {
	return Config{
		PDFEngine:       getenv("PDF_ENGINE", EngineGofpdf),
		PDFChromiumPath: getenv("PDF_CHROMIUM_PATH", ""),
		PDFTimeout:      getDuration("PDF_TIMEOUT", 15*time.Second),
		PDFCompress:     getBool("PDF_COMPRESS", true),
		PDFTimeZone:     getenv("PDF_TIMEZONE", "UTC"),
		BrandColor:      getenv("EXPORT_BRAND_COLOR", "#4F46E5"),
		Footer:          getenv("EXPORT_FOOTER", "Generated with Quotla"),
	}
}

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
