package main

import (
	"context"
	"sync"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type pinger interface {
	Ping(context.Context) error
}

type topicSource interface {
	Topic(name string) topicPublisher
}

type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type publisherProvider interface {
	Publisher(name string) *gcppubsub.Publisher
}

// pubsubTopics hands out one ordered publisher per topic and keeps it for
// the life of the process.
type pubsubTopics struct {
	client publisherProvider
	mu     sync.Mutex
	open   map[string]*orderedPublisher
}

func newPubSubTopics(client publisherProvider) *pubsubTopics {
	return &pubsubTopics{client: client, open: map[string]*orderedPublisher{}}
}

func (t *pubsubTopics) Topic(name string) topicPublisher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pub, ok := t.open[name]; ok {
		return pub
	}
	raw := t.client.Publisher(name)
	if raw == nil {
		return nil
	}
	raw.EnableMessageOrdering = true
	pub := &orderedPublisher{raw: raw}
	t.open[name] = pub
	return pub
}

// Stop flushes and stops every publisher handed out so far.
func (t *pubsubTopics) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, pub := range t.open {
		pub.raw.Stop()
		delete(t.open, name)
	}
}

type orderedPublisher struct {
	raw *gcppubsub.Publisher
}

func (p *orderedPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.raw.Publish(ctx, msg)
}

func (p *orderedPublisher) ResumePublish(orderingKey string) {
	p.raw.ResumePublish(orderingKey)
}
