package client

import (
	"context"
	"io"
	"time"

	"courtbook/pkg/logger"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type closer struct {
	name string
	c    io.Closer
}

// Client owns the process-wide connections and closes them in reverse order on shutdown.
type Client struct {
	Mongo   *mongo.Client
	closers []closer
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

// Register adds a connection to be closed by GracefulShutdown.
func (c *Client) Register(name string, conn io.Closer) {
	if conn == nil {
		return
	}
	c.closers = append(c.closers, closer{name: name, c: conn})
}

func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].c.Close(); err != nil {
			log.Error("Failed to close connection", "name", c.closers[i].name, "error", err)
		}
	}
	c.closers = nil

	if c.Mongo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Mongo.Disconnect(ctx); err != nil {
		log.Error("Failed to disconnect from MongoDB", "error", err)
		return
	}
	log.Info("Disconnected from MongoDB")
}
