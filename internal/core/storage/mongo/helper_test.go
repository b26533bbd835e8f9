package mongo

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	globalTestClient     *mongo.Client
	globalTestClientOnce sync.Once
)

// getGlobalTestClient connects once to DAYBOOK_TEST_MONGO_URI and skips
// the test when it is unset. Transactions need a replica set.
func getGlobalTestClient(t *testing.T) *mongo.Client {
	uri := os.Getenv("DAYBOOK_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DAYBOOK_TEST_MONGO_URI not set")
	}
	globalTestClientOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		require.NoError(t, err)
		require.NoError(t, client.Ping(ctx, nil))
		globalTestClient = client
	})
	if globalTestClient == nil {
		t.Skip("mongo test client unavailable")
	}
	return globalTestClient
}

func setupTestStore(t *testing.T) *documentStore {
	client := getGlobalTestClient(t)

	safeName := strings.ReplaceAll(t.Name(), "/", "_")
	if len(safeName) > 20 {
		safeName = safeName[len(safeName)-20:]
	}
	dbName := fmt.Sprintf("test_daybook_%s_%d", safeName, time.Now().UnixNano()%100000)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Database(dbName).Drop(ctx)
	})

	store := newDocumentStore(client, client.Database(dbName), "documents")
	require.NoError(t, store.EnsureIndexes(context.Background()))
	return store
}
