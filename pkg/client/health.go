package client

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type Pinger struct {
	name string
	ping func(ctx context.Context) error
}

func (p Pinger) Name() string { return p.name }

func (p Pinger) Ping(ctx context.Context) error { return p.ping(ctx) }

// Pingers lists a readiness probe per connected backend.
func (c *Client) Pingers() []Pinger {
	var out []Pinger
	if c.Mongo != nil {
		out = append(out, mongoPinger(c.Mongo))
	}
	if c.Redis != nil {
		out = append(out, redisPinger(c.Redis))
	}
	return out
}

func mongoPinger(m *mongo.Client) Pinger {
	return Pinger{name: "mongo", ping: func(ctx context.Context) error { return m.Ping(ctx, nil) }}
}

func redisPinger(r *redis.Client) Pinger {
	return Pinger{name: "redis", ping: func(ctx context.Context) error { return r.Ping(ctx).Err() }}
}
