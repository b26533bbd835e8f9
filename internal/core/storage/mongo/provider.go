package mongo

import (
	"context"
	"time"

	"github.com/syntrixbase/daybook/internal/core/storage/types"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Provider owns one MongoDB connection and the document store on top of it.
type Provider struct {
	client *mongo.Client
	dbName string
	store  *documentStore
}

var _ types.DocumentProvider = (*Provider)(nil)

// NewProvider connects, pings and prepares the document collection.
func NewProvider(ctx context.Context, uri, dbName, dataCollection string) (*Provider, error) {
	clientOpts := options.Client().ApplyURI(uri)

	// Set some reasonable defaults if not provided in URI
	if clientOpts.ConnectTimeout == nil {
		timeout := 10 * time.Second
		clientOpts.SetConnectTimeout(timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	store := newDocumentStore(client, client.Database(dbName), dataCollection)
	if err := store.EnsureIndexes(ctx); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return &Provider{
		client: client,
		dbName: dbName,
		store:  store,
	}, nil
}

// Document returns the document store.
func (p *Provider) Document() types.DocumentStore {
	return p.store
}

// Client returns the underlying MongoDB client
func (p *Provider) Client() *mongo.Client {
	return p.client
}

// DatabaseName returns the database name for this provider
func (p *Provider) DatabaseName() string {
	return p.dbName
}

// Close closes the MongoDB connection
func (p *Provider) Close(ctx context.Context) error {
	return p.client.Disconnect(ctx)
}
