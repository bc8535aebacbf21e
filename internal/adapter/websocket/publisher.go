package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/centrifugal/centrifuge"
)

// Publisher pushes box views to their centrifuge channels.
type Publisher struct {
	node      *centrifuge.Node
	wsMetrics *metrics.WebSocketMetrics
}

func NewPublisher(node *centrifuge.Node, wsMetrics *metrics.WebSocketMetrics) *Publisher {
	return &Publisher{node: node, wsMetrics: wsMetrics}
}

func (p *Publisher) PublishView(_ context.Context, view domain.BoxView) error {
	data, err := encodeView(view)
	if err != nil {
		p.countError()
		return err
	}

	channel := Channel(view.FeedID)
	if _, err := p.node.Publish(channel, data); err != nil {
		p.countError()
		return fmt.Errorf("publish to channel %s: %w", channel, err)
	}

	if p.wsMetrics != nil {
		p.wsMetrics.ViewsPublished.Inc()
	}
	return nil
}

func (p *Publisher) countError() {
	if p.wsMetrics != nil {
		p.wsMetrics.PublishErrors.Inc()
	}
}

func encodeView(view domain.BoxView) ([]byte, error) {
	data, err := json.Marshal(view)
	if err != nil {
		return nil, fmt.Errorf("marshal box view: %w", err)
	}
	return data, nil
}
