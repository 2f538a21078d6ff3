package testutil

import (
	"os"
	"testing"
)

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	CourtsURL    string
	BookingsURL  string
}

// NewTestEnv skips the calling test unless INTEGRATION is set, since it needs
// both services and MongoDB running.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()
	if os.Getenv("INTEGRATION") == "" {
		t.Skip("set INTEGRATION=1 to run against live services")
	}

	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		CourtsURL:    getEnv("TEST_COURTS_URL", "http://localhost:8080"),
		BookingsURL:  getEnv("TEST_BOOKINGS_URL", "http://localhost:8081"),
	}
}

func (e *TestEnv) Setup(t *testing.T) (*MongoHelper, *Client, *Client) {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanCollections(t, CourtsCollection, BookingsCollection, PaymentsCollection)

	courts := NewClient(e.CourtsURL)
	courts.WaitForHealthy(t, DefaultHealthCheckTimeout)
	bookings := NewClient(e.BookingsURL)
	bookings.WaitForHealthy(t, DefaultHealthCheckTimeout)

	return mongo, courts, bookings
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanCollections(t, CourtsCollection, BookingsCollection, PaymentsCollection)
		mongo.Close(t)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

const (
	DefaultHealthCheckTimeout = 3 * ConnectionTimeout
)
