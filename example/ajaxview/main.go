package main

import (
	"crypto/rand"
	"embed"
	"encoding/base64"
	"html/template"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/mnehpets/ajaxview/ajax"
	"github.com/mnehpets/ajaxview/endpoint"
	"github.com/mnehpets/ajaxview/logging"
	"github.com/mnehpets/ajaxview/middleware"
)

//go:embed templates/page.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/page.html"))

// config is read from the environment, after loading .env if present.
//
//	ADDR                 listen address (default :8080)
//	AJAXVIEW_CSRF_KEY    base64 32-byte key sealing the CSRF cookie (random if unset)
//	AJAXVIEW_INSECURE    "true" drops the Secure cookie flag and HSTS for plain HTTP
//	AJAXVIEW_RATE        calls per second per view (default 20)
type config struct {
	addr     string
	csrfKey  []byte
	insecure bool
	rate     float64
}

func loadConfig(log zerolog.Logger) (config, error) {
	cfg := config{addr: ":8080", rate: 20}
	if v := os.Getenv("ADDR"); v != "" {
		cfg.addr = v
	}
	cfg.insecure, _ = strconv.ParseBool(os.Getenv("AJAXVIEW_INSECURE"))
	if v := os.Getenv("AJAXVIEW_RATE"); v != "" {
		rate, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, err
		}
		cfg.rate = rate
	}

	if v := os.Getenv("AJAXVIEW_CSRF_KEY"); v != "" {
		key, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return cfg, err
		}
		cfg.csrfKey = key
	} else {
		log.Warn().Msg("AJAXVIEW_CSRF_KEY not set, using a random key; CSRF cookies will not survive a restart")
		cfg.csrfKey = make([]byte, middleware.DefaultAEADKeysize)
		if _, err := rand.Read(cfg.csrfKey); err != nil {
			return cfg, err
		}
	}
	return cfg, nil
}

func main() {
	envErr := godotenv.Load()
	log := logging.New(os.Stderr, logging.ConfigFromEnv())
	if envErr != nil {
		log.Info().Msg("no .env file found, using environment variables")
	}
	cfg, err := loadConfig(log)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	var (
		cookieOpts []middleware.SecureCookieOption
		headerOpts []middleware.SecurityHeadersOption
	)
	if cfg.insecure {
		cookieOpts = append(cookieOpts, middleware.WithSecure(false))
		headerOpts = append(headerOpts, middleware.WithoutHSTS())
	}

	csrf, err := middleware.NewCSRFProcessor("k1", map[string][]byte{"k1": cfg.csrfKey},
		middleware.WithCSRFCookieOptions(cookieOpts...))
	if err != nil {
		log.Fatal().Err(err).Msg("csrf setup")
	}
	requestID := middleware.NewRequestIDProcessor()
	headers := middleware.NewSecurityHeadersProcessor(headerOpts...)

	// Each view gets its own call budget.
	chain := func() []endpoint.Processor {
		return []endpoint.Processor{
			requestID,
			headers,
			middleware.NewRateLimitProcessor(cfg.rate, int(cfg.rate)+1),
			csrf,
		}
	}

	sink := logging.ZerologSink{Logger: log}

	calc := &ajax.View{
		Registry: calcMethods,
		Handler:  &Calc{},
		Sink:     sink,
		Page:     pages,
		PageName: "calc",
	}
	sci := &ajax.View{
		Registry:     sciMethods,
		Handler:      &SciCalc{Calc: &Calc{}},
		FunctionName: "sci",
		Sink:         sink,
		Page:         pages,
		PageName:     "sci",
	}

	mux := http.NewServeMux()
	mux.Handle("/calc", calc.HTTPHandler(chain()...))
	mux.Handle("/sci", sci.HTTPHandler(chain()...))
	mux.Handle("/", http.RedirectHandler("/calc", http.StatusFound))

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", cfg.addr).Strs("methods", sciMethods.Names()).Msg("listening")
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
