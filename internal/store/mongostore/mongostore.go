// Package mongostore implements domain.RecordSink on a MongoDB collection.
package mongostore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mmcdole/harvester/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultTimeout = 10 * time.Second

// Config locates the collection records are written to.
type Config struct {
	URI        string // Overrides Host/Port when set
	Host       string
	Port       int
	Database   string
	Collection string
	Timeout    time.Duration
}

// ConnectionURI returns the URI the client connects with.
func (c Config) ConnectionURI() string {
	if c.URI != "" {
		return c.URI
	}
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 27017
	}
	return "mongodb://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// Store writes records into one collection.
type Store struct {
	client  *mongo.Client
	coll    *mongo.Collection
	timeout time.Duration
}

// Open connects and pings the server. Failures wrap domain.ErrConnection.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Database == "" || cfg.Collection == "" {
		return nil, fmt.Errorf("%w: mongo database and collection are required", domain.ErrConnection)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	opts := options.Client().
		ApplyURI(cfg.ConnectionURI()).
		SetConnectTimeout(cfg.Timeout).
		SetServerSelectionTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: mongo connect: %v", domain.ErrConnection, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: mongo ping: %v", domain.ErrConnection, err)
	}

	return &Store{
		client:  client,
		coll:    client.Database(cfg.Database).Collection(cfg.Collection),
		timeout: cfg.Timeout,
	}, nil
}

// UpsertByIdentity replaces the document with the same _id, inserting it if absent.
func (s *Store) UpsertByIdentity(ctx context.Context, rec domain.Record) error {
	id, ok := rec.Identity()
	if !ok {
		return fmt.Errorf("%w: record has no identity", domain.ErrWrite)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.coll.ReplaceOne(ctx, bson.M{domain.IdentityField: id}, map[string]any(rec), options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%w: mongo upsert: %v", domain.ErrWrite, err)
	}
	return nil
}

// InsertPlain inserts rec and lets the server assign an ObjectID.
func (s *Store) InsertPlain(ctx context.Context, rec domain.Record) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.coll.InsertOne(ctx, map[string]any(rec)); err != nil {
		return fmt.Errorf("%w: mongo insert: %v", domain.ErrWrite, err)
	}
	return nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.coll.CountDocuments(ctx, bson.M{})
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
