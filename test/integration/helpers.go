//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nc9/sanity-go/pkg/sanity"
	"github.com/nc9/sanity-go/pkg/sanityclient"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	ProjectID string
	Dataset   string
	Token     string
	Verbose   bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		ProjectID: os.Getenv("SANITY_PROJECT_ID"),
		Dataset:   os.Getenv("SANITY_TEST_DATASET"),
		Token:     os.Getenv("SANITY_API_TOKEN"),
		Verbose:   os.Getenv("SANITY_VERBOSE") == "true",
	}
}

// SkipIfMissingConfig skips test if required config is missing. Writes go
// to a dedicated dataset so production content is never touched.
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	t.Helper()

	if config.ProjectID == "" || config.Token == "" {
		t.Skip("SANITY_PROJECT_ID or SANITY_API_TOKEN not set, skipping integration test")
	}

	if config.Dataset == "" {
		t.Skip("SANITY_TEST_DATASET not set, skipping integration test")
	}
}

// NewClient creates a live client against the test dataset
func (config *TestConfig) NewClient(t *testing.T) *sanityclient.Client {
	t.Helper()

	logLevel := "WARN"
	if config.Verbose {
		logLevel = "DEBUG"
	}

	client, err := sanityclient.New(context.Background(), &sanity.Config{
		ProjectID: config.ProjectID,
		Dataset:   config.Dataset,
		Token:     config.Token,
		UseCDN:    sanity.Bool(false),
		LogLevel:  logLevel,
	})
	require.NoError(t, err)

	t.Cleanup(func() { _ = client.Close() })

	return client
}

// GenerateTestName generates a unique document id for tests
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// CleanupDocument deletes a test document, ignoring failures
func CleanupDocument(t *testing.T, client *sanityclient.Client, id string) {
	t.Helper()

	_, err := client.Mutate(context.Background(), []sanity.Mutation{sanity.Delete(id)}, nil)
	if err != nil {
		t.Logf("cleanup of %s failed: %v", id, err)
	}
}
