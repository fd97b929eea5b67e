package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrijs2005/feedvault/internal/common"
)

const defaultTimeout = 12 * time.Second

// Options configures the mongo-backed client.
type Options struct {
	URI         string
	Database    string
	AccessToken string

	// Timeout bounds every remote call. Zero means defaultTimeout.
	Timeout time.Duration
}

// MongoClient implements Client over a MongoDB deployment.
type MongoClient struct {
	client  *mongo.Client
	db      *mongo.Database
	token   string
	timeout time.Duration
}

// Dial connects, pings the deployment, and returns a ready client.
func Dial(ctx context.Context, opts Options) (*MongoClient, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	cli, err := mongo.Connect(options.Client().ApplyURI(opts.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to remote store: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := cli.Ping(pctx, nil); err != nil {
		_ = cli.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping remote store: %w", err)
	}

	return &MongoClient{
		client:  cli,
		db:      cli.Database(opts.Database),
		token:   opts.AccessToken,
		timeout: timeout,
	}, nil
}

// Authenticate resolves the configured bearer token into a user identity.
func (c *MongoClient) Authenticate(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return UserIDFromToken(c.token)
}

// Collection returns a timeout-bounded handle to the named collection.
func (c *MongoClient) Collection(name string) Collection {
	return &mongoCollection{col: c.db.Collection(name), timeout: c.timeout}
}

// Close disconnects from the deployment.
func (c *MongoClient) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

type mongoCollection struct {
	col     *mongo.Collection
	timeout time.Duration
}

func (m *mongoCollection) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, m.timeout)
}

func (m *mongoCollection) Find(ctx context.Context, filter Q, out any) error {
	tctx, cancel := m.bounded(ctx)
	defer cancel()

	cur, err := m.col.Find(tctx, bson.M(filter))
	if err != nil {
		return fmt.Errorf("find failed: %w", err)
	}
	if err := cur.All(tctx, out); err != nil {
		return fmt.Errorf("cursor decode failed: %w", err)
	}
	return nil
}

func (m *mongoCollection) FindOne(ctx context.Context, filter Q, out any) error {
	tctx, cancel := m.bounded(ctx)
	defer cancel()

	err := m.col.FindOne(tctx, bson.M(filter)).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return common.ErrorNotFound
	}
	if err != nil {
		return fmt.Errorf("findOne failed: %w", err)
	}
	return nil
}

func (m *mongoCollection) UpdateOne(ctx context.Context, filter Q, update Update, upsert bool) error {
	tctx, cancel := m.bounded(ctx)
	defer cancel()

	_, err := m.col.UpdateOne(tctx, bson.M(filter), bson.M(update),
		options.UpdateOne().SetUpsert(upsert))
	if err != nil {
		return fmt.Errorf("updateOne failed: %w", err)
	}
	return nil
}

func (m *mongoCollection) DeleteOne(ctx context.Context, filter Q) error {
	tctx, cancel := m.bounded(ctx)
	defer cancel()

	if _, err := m.col.DeleteOne(tctx, bson.M(filter)); err != nil {
		return fmt.Errorf("deleteOne failed: %w", err)
	}
	return nil
}

func (m *mongoCollection) DeleteMany(ctx context.Context, filter Q) error {
	tctx, cancel := m.bounded(ctx)
	defer cancel()

	if _, err := m.col.DeleteMany(tctx, bson.M(filter)); err != nil {
		return fmt.Errorf("deleteMany failed: %w", err)
	}
	return nil
}
