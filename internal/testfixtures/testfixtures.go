// Package testfixtures provides shared helpers for integration tests that
// run against a live MongoDB instance. Tests are skipped when no database is
// reachable, so unit-only runs stay green.
package testfixtures

import (
	"context"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"go.mongodb.org/mongo-driver/mongo"

	"hostelpass/internal/shared"
)

var loadEnvOnce sync.Once

// DB connects to the test database, or skips the calling test when MongoDB
// is not reachable.
func DB(t *testing.T) *TestDB {
	t.Helper()

	loadEnvOnce.Do(func() {
		if err := godotenv.Load("../../.env"); err != nil {
			log.Println("No .env file found, using system environment variables")
		}
	})

	uri := shared.GetEnv("MONGO_URI", "")
	if uri == "" {
		t.Skip("MONGO_URI not set; skipping integration test")
	}

	cfg := shared.DefaultMongoConfig(uri, shared.GetEnv("MONGO_TEST_DB_NAME", "hostelpass_test"))
	cfg.ConnectTimeout = 5 * time.Second
	cfg.MaxPoolSize = 10
	cfg.MinPoolSize = 1

	client, db, err := shared.ConnectMongoDB(cfg)
	if err != nil {
		t.Skipf("MongoDB not reachable, skipping integration test: %v", err)
	}

	tdb := &TestDB{DB: db}
	t.Cleanup(func() {
		shared.DisconnectMongoDB(client)
	})
	return tdb
}

// TestDB wraps the test database with cleanup helpers
type TestDB struct {
	DB *mongo.Database
}

// Reset drops the named collections so a test starts clean
func (tdb *TestDB) Reset(t *testing.T, collections ...string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, name := range collections {
		if err := tdb.DB.Collection(name).Drop(ctx); err != nil {
			t.Fatalf("Failed to drop collection %s: %v", name, err)
		}
	}
}

// CaptureSender is a notify.Sender that records every sent message instead
// of delivering it.
type CaptureSender struct {
	mu   sync.Mutex
	Sent []CapturedMail
}

// CapturedMail is one recorded message
type CapturedMail struct {
	To      string
	Subject string
	Body    string
}

// Send records the message and reports success
func (c *CaptureSender) Send(to, subject, htmlBody string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sent = append(c.Sent, CapturedMail{To: to, Subject: subject, Body: htmlBody})
	return "captured", nil
}

// Count returns how many messages were recorded
func (c *CaptureSender) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.Sent)
}

// Last returns the most recent message, or nil
func (c *CaptureSender) Last() *CapturedMail {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Sent) == 0 {
		return nil
	}
	m := c.Sent[len(c.Sent)-1]
	return &m
}
