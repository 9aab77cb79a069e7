// Package events publishes ingestion notifications on Redis pub/sub so other
// services (a front end cache, an SSE gateway) can react to new articles.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChannelArticlesIngested is both the channel name and the event type.
const ChannelArticlesIngested = "EVENT_ARTICLES_INGESTED"

// ArticlesIngested is the payload sent after every completed ingestion run.
type ArticlesIngested struct {
	Type         string    `json:"type"`
	Count        int       `json:"count"`
	TotalFetched int       `json:"totalFetched"`
	Failed       []string  `json:"failedSites"`
	Sources      []string  `json:"sources"`
	Timestamp    time.Time `json:"timestamp"`
}

// Publisher sends events through a Redis client.
type Publisher struct {
	rdb redis.Cmdable
}

// NewPublisher returns a Publisher backed by rdb.
func NewPublisher(rdb redis.Cmdable) *Publisher {
	return &Publisher{rdb: rdb}
}

// PublishIngested publishes ev on ChannelArticlesIngested. Type is filled in
// when empty.
func (p *Publisher) PublishIngested(ctx context.Context, ev ArticlesIngested) error {
	if ev.Type == "" {
		ev.Type = ChannelArticlesIngested
	}
	if ev.Failed == nil {
		ev.Failed = []string{}
	}
	if ev.Sources == nil {
		ev.Sources = []string{}
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	if err := p.rdb.Publish(ctx, ChannelArticlesIngested, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}
