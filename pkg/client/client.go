package client

import (
	"context"
	"time"

	"meetly/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// Client holds the process-wide backing store connections.
type Client struct {
	Mongo *mongo.Client
}

func NewClient() *Client {
	return &Client{}
}

// MongoOptions describes how a service connects to MongoDB.
type MongoOptions struct {
	URI         string
	AppName     string
	ConnTimeout time.Duration
}

// SetMongo connects, pings and checks that the deployment can run
// multi-document transactions. Connection failures are fatal.
func (c *Client) SetMongo(log *logger.Logger, opts MongoOptions) {
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnTimeout)
	defer cancel()

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetAppName(opts.AppName).
		SetRetryWrites(true).
		SetWriteConcern(writeconcern.Majority())

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	if replicaSet, err := replicaSetName(ctx, client); err != nil {
		log.Warn("Could not determine MongoDB topology", "error", err)
	} else if replicaSet == "" {
		log.Warn("MongoDB is not a replica set; meeting writes need transactions and will fail")
	} else {
		log.Info("Connected to MongoDB", "replica_set", replicaSet, "app_name", opts.AppName)
	}
	c.Mongo = client
}

func replicaSetName(ctx context.Context, client *mongo.Client) (string, error) {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		return "", err
	}
	if hello.Msg == "isdbgrid" {
		return "mongos", nil
	}
	return hello.SetName, nil
}

// GracefulShutdown disconnects every client that was set.
func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
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
