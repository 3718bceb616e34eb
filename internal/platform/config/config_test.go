package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadWithDefaults(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":      "av-dev",
		"API_STORAGE_DOCUMENTS_BUCKET": "atlas-documents-dev",
	}

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("unexpected read timeout: %s", cfg.Server.ReadTimeout)
	}
	if cfg.Firestore.ProjectID != "av-dev" {
		t.Errorf("expected firestore project to default to firebase project, got %s", cfg.Firestore.ProjectID)
	}
	if cfg.Events.ProjectID != "av-dev" {
		t.Errorf("expected events project to default to firebase project, got %s", cfg.Events.ProjectID)
	}
	if cfg.Events.TopicID != defaultEventsTopic {
		t.Errorf("expected default events topic, got %s", cfg.Events.TopicID)
	}
	if cfg.RateLimits.DefaultPerMinute != 120 {
		t.Errorf("unexpected default rate limit: %d", cfg.RateLimits.DefaultPerMinute)
	}
	if cfg.Security.Environment != "local" {
		t.Errorf("expected default security environment local, got %s", cfg.Security.Environment)
	}
	if cfg.Portal.Issuer != defaultPortalIssuer {
		t.Errorf("expected default portal issuer, got %s", cfg.Portal.Issuer)
	}
	if cfg.Portal.TokenTTL != defaultPortalTokenTTL {
		t.Errorf("unexpected default portal token ttl: %s", cfg.Portal.TokenTTL)
	}
	if cfg.Pricing.EarlyBirdMinDays != defaultEarlyBirdMinDays {
		t.Errorf("unexpected default early bird window: %d", cfg.Pricing.EarlyBirdMinDays)
	}
	if cfg.Pricing.EarlyBirdBps != defaultEarlyBirdBps {
		t.Errorf("unexpected default early bird bps: %d", cfg.Pricing.EarlyBirdBps)
	}
	if cfg.Pricing.SingleRoomNightlyAmount != defaultSingleRoomNightly {
		t.Errorf("unexpected default single room supplement: %d", cfg.Pricing.SingleRoomNightlyAmount)
	}
	if !cfg.Features.EnableEarlyBird {
		t.Errorf("expected early bird feature enabled by default")
	}
}

func TestLoadWithOverridesAndSecrets(t *testing.T) {
	env := map[string]string{
		"API_SERVER_PORT":                  "9090",
		"API_SERVER_READ_TIMEOUT":          "20s",
		"API_SERVER_WRITE_TIMEOUT":         "25s",
		"API_SERVER_IDLE_TIMEOUT":          "2m",
		"API_FIREBASE_PROJECT_ID":          "av-prod",
		"API_FIRESTORE_PROJECT_ID":         "av-fire",
		"API_STORAGE_DOCUMENTS_BUCKET":     "documents-prod",
		"API_STORAGE_EXPORTS_BUCKET":       "exports-prod",
		"API_PSP_STRIPE_API_KEY":           "secret://stripe/api",
		"API_PSP_STRIPE_WEBHOOK_SECRET":    "secret://stripe/webhook",
		"API_EVENTS_PROJECT_ID":            "av-events",
		"API_EVENTS_TOPIC":                 "quotes-prod",
		"API_EVENTS_ENABLED":               "false",
		"API_PORTAL_SIGNING_SECRET":        "secret://portal/signing",
		"API_PORTAL_ISSUER":                "atlas-prod",
		"API_PORTAL_TOKEN_TTL":             "168h",
		"API_PRICING_EARLYBIRD_MIN_DAYS":   "60",
		"API_PRICING_EARLYBIRD_BPS":        "750",
		"API_RATELIMIT_DEFAULT_PER_MIN":    "150",
		"API_RATELIMIT_AUTH_PER_MIN":       "300",
		"API_FEATURE_EARLYBIRD":            "false",
		"API_FEATURE_CLIENT_PORTAL":        "true",
		"API_SECURITY_ENVIRONMENT":         "prod",
		"API_STORAGE_SIGNER_KEY":           "secret://storage/signer",
		"API_IDEMPOTENCY_HEADER":           "X-Request-Key",
		"API_IDEMPOTENCY_TTL":              "12h",
		"API_IDEMPOTENCY_CLEANUP_INTERVAL": "5m",
		"API_IDEMPOTENCY_CLEANUP_BATCH":    "50",
	}

	secrets := map[string]string{
		"secret://stripe/api":     "stripe-key",
		"secret://stripe/webhook": "stripe-webhook",
		"secret://portal/signing": "portal-signing",
		"secret://storage/signer": `{"client_email":"signer@av-prod.iam"}`,
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	})

	cfg, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""), WithSecretResolver(resolver))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Server.IdleTimeout != 2*time.Minute {
		t.Errorf("unexpected idle timeout: %s", cfg.Server.IdleTimeout)
	}
	if cfg.PSP.StripeAPIKey != "stripe-key" {
		t.Errorf("expected resolved stripe api key, got %s", cfg.PSP.StripeAPIKey)
	}
	if cfg.PSP.StripeWebhookSecret != "stripe-webhook" {
		t.Errorf("expected resolved stripe webhook secret, got %s", cfg.PSP.StripeWebhookSecret)
	}
	if cfg.Portal.SigningSecret != "portal-signing" {
		t.Errorf("expected resolved portal signing secret, got %s", cfg.Portal.SigningSecret)
	}
	if cfg.Events.ProjectID != "av-events" {
		t.Errorf("unexpected events project %s", cfg.Events.ProjectID)
	}
	if cfg.Events.TopicID != "quotes-prod" {
		t.Errorf("unexpected events topic %s", cfg.Events.TopicID)
	}
	if cfg.Events.Enabled {
		t.Errorf("expected events disabled")
	}
	if cfg.Portal.Issuer != "atlas-prod" {
		t.Errorf("unexpected portal issuer %s", cfg.Portal.Issuer)
	}
	if cfg.Portal.TokenTTL != 168*time.Hour {
		t.Errorf("unexpected portal token ttl %s", cfg.Portal.TokenTTL)
	}
	if cfg.Pricing.EarlyBirdMinDays != 60 {
		t.Errorf("unexpected early bird window %d", cfg.Pricing.EarlyBirdMinDays)
	}
	if cfg.Pricing.EarlyBirdBps != 750 {
		t.Errorf("unexpected early bird bps %d", cfg.Pricing.EarlyBirdBps)
	}
	if cfg.Features.EnableEarlyBird {
		t.Errorf("expected early bird flag disabled")
	}
	if !cfg.Features.EnableClientPortal {
		t.Errorf("expected client portal flag enabled")
	}
	if cfg.Security.Environment != "prod" {
		t.Errorf("expected security environment prod, got %s", cfg.Security.Environment)
	}
	if cfg.Storage.SignerKey != `{"client_email":"signer@av-prod.iam"}` {
		t.Errorf("expected resolved storage signer key, got %s", cfg.Storage.SignerKey)
	}
	if cfg.Idempotency.Header != "X-Request-Key" {
		t.Errorf("unexpected idempotency header %s", cfg.Idempotency.Header)
	}
	if cfg.Idempotency.TTL != 12*time.Hour {
		t.Errorf("unexpected idempotency ttl %s", cfg.Idempotency.TTL)
	}
	if cfg.Idempotency.CleanupInterval != 5*time.Minute {
		t.Errorf("unexpected idempotency cleanup interval %s", cfg.Idempotency.CleanupInterval)
	}
	if cfg.Idempotency.CleanupBatchSize != 50 {
		t.Errorf("unexpected idempotency cleanup batch %d", cfg.Idempotency.CleanupBatchSize)
	}
}

func TestLoadDotEnvFallback(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_SERVER_PORT=7070\nAPI_FIREBASE_PROJECT_ID=av-dot\nAPI_STORAGE_DOCUMENTS_BUCKET=documents-dot\n"
	if err := os.WriteFile(envPath, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write dotenv file: %v", err)
	}

	cfg, err := Load(context.Background(), WithEnvFile(envPath), WithoutSystemEnv())
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port from dotenv 7070, got %s", cfg.Server.Port)
	}
	if cfg.Firebase.ProjectID != "av-dot" {
		t.Errorf("expected firebase project from dotenv, got %s", cfg.Firebase.ProjectID)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	_, err := Load(context.Background(), WithEnvMap(map[string]string{}), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if _, ok := err.(*ValidationError); !ok {
		t.Fatalf("expected ValidationError, got %T", err)
	}
}

func TestLoadSecretResolverError(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":      "av-dev",
		"API_STORAGE_DOCUMENTS_BUCKET": "documents",
		"API_PSP_STRIPE_API_KEY":       "secret://missing",
	}

	_, err := Load(context.Background(), WithEnvMap(env), WithoutSystemEnv(), WithEnvFile(""))
	if err == nil {
		t.Fatal("expected secret resolution error, got nil")
	}
	var secretErr *SecretError
	if !errors.As(err, &secretErr) {
		t.Fatalf("expected SecretError, got %T", err)
	}
	if secretErr.Ref != "secret://missing" {
		t.Errorf("unexpected secret ref %s", secretErr.Ref)
	}
}

func TestEnvironmentValuesMergesSources(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env.test")
	content := "API_FIREBASE_PROJECT_ID=dot-project\nAPI_SECRET_FALLBACK_FILE=.dot.local\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed writing env file: %v", err)
	}

	t.Setenv("API_FIREBASE_PROJECT_ID", "os-project")
	t.Setenv("API_SECRET_PROJECT_IDS", "prod=project-prod")

	overrides := map[string]string{
		"API_FIREBASE_PROJECT_ID": "override-project",
		"API_SECRET_VERSION_PINS": "secret://stripe/api=5",
	}

	values, err := EnvironmentValues(WithEnvFile(envPath), WithEnvMap(overrides))
	if err != nil {
		t.Fatalf("EnvironmentValues returned error: %v", err)
	}

	if got := values["API_FIREBASE_PROJECT_ID"]; got != "override-project" {
		t.Fatalf("expected override project, got %s", got)
	}
	if got := values["API_SECRET_FALLBACK_FILE"]; got != ".dot.local" {
		t.Fatalf("expected dotenv fallback file, got %s", got)
	}
	if got := values["API_SECRET_PROJECT_IDS"]; got != "prod=project-prod" {
		t.Fatalf("expected system env project map, got %s", got)
	}
	if got := values["API_SECRET_VERSION_PINS"]; got != "secret://stripe/api=5" {
		t.Fatalf("expected override version pin, got %s", got)
	}
}

func TestLoadMissingRequiredSecrets(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":      "av-dev",
		"API_STORAGE_DOCUMENTS_BUCKET": "documents",
	}

	_, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Portal.SigningSecret"),
	)
	if err == nil {
		t.Fatal("expected missing secrets error, got nil")
	}
	var missing *MissingSecretsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSecretsError, got %T", err)
	}
	expectedRedacted := redactSecretName("Portal.SigningSecret")
	if got := missing.RedactedNames(); len(got) != 1 || got[0] != expectedRedacted {
		t.Fatalf("unexpected redacted names %v", got)
	}
}

func TestLoadMissingRequiredSecretsPanic(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":      "av-dev",
		"API_STORAGE_DOCUMENTS_BUCKET": "documents",
	}

	defer func() {
		rec := recover()
		if rec == nil {
			t.Fatal("expected panic when required secrets missing")
		}
		missing, ok := rec.(*MissingSecretsError)
		if !ok {
			t.Fatalf("expected MissingSecretsError panic, got %T", rec)
		}
		if len(missing.Names()) != 1 || missing.Names()[0] != "Portal.SigningSecret" {
			t.Fatalf("unexpected missing secrets %v", missing.Names())
		}
	}()

	Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithRequiredSecrets("Portal.SigningSecret"),
		WithPanicOnMissingSecrets(),
	)
}

func TestLoadSupportsLegacySecretScheme(t *testing.T) {
	env := map[string]string{
		"API_FIREBASE_PROJECT_ID":      "av-dev",
		"API_STORAGE_DOCUMENTS_BUCKET": "documents",
		"API_PORTAL_SIGNING_SECRET":    "sm://portal/signing",
	}

	secrets := map[string]string{
		"secret://portal/signing": "legacy-secret",
	}

	resolver := SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
		if v, ok := secrets[ref]; ok {
			return v, nil
		}
		return "", &SecretError{Ref: ref, Err: errors.New("not found")}
	})

	cfg, err := Load(context.Background(),
		WithEnvMap(env),
		WithoutSystemEnv(),
		WithEnvFile(""),
		WithSecretResolver(resolver),
	)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Portal.SigningSecret != "legacy-secret" {
		t.Fatalf("expected legacy secret, got %s", cfg.Portal.SigningSecret)
	}
}
