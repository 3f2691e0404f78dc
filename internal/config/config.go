package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

type Config struct {
	Port          string
	DataDir       string // empty: use the embedded fixtures
	LatencyScale  float64
	Rebase        bool
	SweepInterval time.Duration
	ViewerID      string
	CORSOrigins   []string
	NoAuth        bool
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// Load reads the environment. Unset variables fall back to the dev defaults.
func Load() (Config, error) {
	c := Config{
		Port:     getenv("PORT", "8080"),
		DataDir:  os.Getenv("DATA_DIR"),
		ViewerID: getenv("VIEWER_ID", "current-user"),
		NoAuth:   NoAuth(),
	}

	var err error
	if c.LatencyScale, err = strconv.ParseFloat(getenv("LATENCY_SCALE", "1"), 64); err != nil {
		return Config{}, fmt.Errorf("LATENCY_SCALE: %w", err)
	}
	if c.LatencyScale < 0 {
		return Config{}, fmt.Errorf("LATENCY_SCALE must not be negative")
	}
	if c.Rebase, err = strconv.ParseBool(getenv("FIXTURE_REBASE", "true")); err != nil {
		return Config{}, fmt.Errorf("FIXTURE_REBASE: %w", err)
	}
	if c.SweepInterval, err = time.ParseDuration(getenv("STORY_SWEEP_INTERVAL", "1m")); err != nil {
		return Config{}, fmt.Errorf("STORY_SWEEP_INTERVAL: %w", err)
	}
	for _, o := range strings.Split(getenv("CORS_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			c.CORSOrigins = append(c.CORSOrigins, o)
		}
	}
	return c, nil
}

func (c Config) Addr() string { return ":" + c.Port }

// NoAuth skips token verification. Only NO_AUTH=1 turns it on.
func NoAuth() bool { return os.Getenv("NO_AUTH") == "1" }

// NewAuthClient builds the Firebase Auth client. It returns nil when auth
// is disabled.
func NewAuthClient(ctx context.Context) (*auth.Client, error) {
	if NoAuth() {
		return nil, nil
	}
	proj := os.Getenv("FIREBASE_PROJECT_ID")
	if proj == "" {
		return nil, fmt.Errorf("FIREBASE_PROJECT_ID not set")
	}

	var opts []option.ClientOption
	if saJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); saJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(saJSON)))
	} else if cred := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); cred != "" {
		if _, err := os.Stat(cred); err != nil {
			return nil, fmt.Errorf("GOOGLE_APPLICATION_CREDENTIALS %q not readable: %w", cred, err)
		}
		opts = append(opts, option.WithCredentialsFile(cred))
	} else if os.Getenv("FIREBASE_AUTH_EMULATOR_HOST") == "" {
		return nil, fmt.Errorf("missing Firebase credentials: set FIREBASE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS, or use FIREBASE_AUTH_EMULATOR_HOST / NO_AUTH=1")
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: proj}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase init: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase auth: %w", err)
	}
	log.Printf("firebase auth enabled for project %s", proj)
	return client, nil
}
