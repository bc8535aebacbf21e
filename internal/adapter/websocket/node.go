package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/LMJ-01/stylemate/internal/adapter/metrics"
	"github.com/LMJ-01/stylemate/internal/domain"
	"github.com/centrifugal/centrifuge"
)

const channelPrefix = "votebox:"

// ViewSource looks up the current view of a tracked box.
type ViewSource interface {
	View(feedID string) (domain.BoxView, bool)
}

// ViewSourceFunc adapts a lookup function to ViewSource.
type ViewSourceFunc func(feedID string) (domain.BoxView, bool)

func (f ViewSourceFunc) View(feedID string) (domain.BoxView, bool) {
	return f(feedID)
}

// Channel is the centrifuge channel a box view is published on.
func Channel(feedID string) string {
	return channelPrefix + feedID
}

func feedIDFromChannel(channel string) (string, bool) {
	feedID, ok := strings.CutPrefix(channel, channelPrefix)
	if !ok || feedID == "" {
		return "", false
	}
	return feedID, true
}

// NewNode creates a centrifuge node that accepts anonymous subscribers of
// tracked box channels. A subscription starts with the box's current view.
func NewNode(views ViewSource, wsMetrics *metrics.WebSocketMetrics, logLevel string) (*centrifuge.Node, error) {
	conf := centrifuge.Config{LogLevel: parseCentrifugeLogLevel(logLevel), LogHandler: slogHandler}
	node, err := centrifuge.New(conf)
	if err != nil {
		return nil, fmt.Errorf("create centrifuge node: %w", err)
	}

	node.OnConnecting(onConnecting)
	node.OnConnect(onConnect(views, wsMetrics))

	return node, nil
}

func onConnecting(ctx context.Context, _ centrifuge.ConnectEvent) (centrifuge.ConnectReply, error) {
	reply := centrifuge.ConnectReply{}
	if _, ok := centrifuge.GetCredentials(ctx); !ok {
		reply.Credentials = &centrifuge.Credentials{}
	}
	return reply, nil
}

func onConnect(views ViewSource, wsMetrics *metrics.WebSocketMetrics) func(client *centrifuge.Client) {
	return func(client *centrifuge.Client) {
		slog.Debug("Client connected", "client_id", client.ID())

		if wsMetrics != nil {
			wsMetrics.ActiveConnections.Inc()
		}

		client.OnSubscribe(func(e centrifuge.SubscribeEvent, cb centrifuge.SubscribeCallback) {
			reply, err := subscribeReply(views, e.Channel)
			if err != nil {
				slog.Debug("Subscription refused", "client_id", client.ID(), "channel", e.Channel)
			}
			cb(reply, err)
		})

		client.OnDisconnect(func(e centrifuge.DisconnectEvent) {
			slog.Debug("Client disconnected", "client_id", client.ID(), "reason", e.Reason)
			if wsMetrics != nil {
				wsMetrics.ActiveConnections.Dec()
			}
		})
	}
}

func subscribeReply(views ViewSource, channel string) (centrifuge.SubscribeReply, error) {
	feedID, ok := feedIDFromChannel(channel)
	if !ok {
		return centrifuge.SubscribeReply{}, centrifuge.ErrorPermissionDenied
	}
	view, ok := views.View(feedID)
	if !ok {
		return centrifuge.SubscribeReply{}, centrifuge.ErrorUnknownChannel
	}

	data, err := encodeView(view)
	if err != nil {
		return centrifuge.SubscribeReply{}, centrifuge.ErrorInternal
	}
	return centrifuge.SubscribeReply{Options: centrifuge.SubscribeOptions{Data: data}}, nil
}

// SetupRedis switches the node to a Redis broker and presence manager so
// several processes can serve the same box channels.
func SetupRedis(node *centrifuge.Node, redisAddr string) error {
	shardConfig := centrifuge.RedisShardConfig{Address: redisAddr}
	shard, err := centrifuge.NewRedisShard(node, shardConfig)
	if err != nil {
		return fmt.Errorf("create redis shard: %w", err)
	}

	brokerConfig := centrifuge.RedisBrokerConfig{Prefix: "votewatch", Shards: []*centrifuge.RedisShard{shard}}
	broker, err := centrifuge.NewRedisBroker(node, brokerConfig)
	if err != nil {
		return fmt.Errorf("create redis broker: %w", err)
	}
	node.SetBroker(broker)

	pmConfig := centrifuge.RedisPresenceManagerConfig{Prefix: "votewatch", Shards: []*centrifuge.RedisShard{shard}}
	presenceManager, err := centrifuge.NewRedisPresenceManager(node, pmConfig)
	if err != nil {
		return fmt.Errorf("create redis presence manager: %w", err)
	}
	node.SetPresenceManager(presenceManager)

	return nil
}

func slogHandler(entry centrifuge.LogEntry) {
	attrs := make([]any, 0, len(entry.Fields)*2)
	for k, v := range entry.Fields {
		attrs = append(attrs, k, v)
	}
	switch entry.Level {
	case centrifuge.LogLevelDebug, centrifuge.LogLevelTrace:
		slog.Debug(entry.Message, attrs...)
	case centrifuge.LogLevelInfo:
		slog.Info(entry.Message, attrs...)
	case centrifuge.LogLevelWarn:
		slog.Warn(entry.Message, attrs...)
	case centrifuge.LogLevelError:
		slog.Error(entry.Message, attrs...)
	case centrifuge.LogLevelNone:
	}
}

func parseCentrifugeLogLevel(level string) centrifuge.LogLevel {
	switch level {
	case "debug":
		return centrifuge.LogLevelDebug
	case "warn":
		return centrifuge.LogLevelWarn
	case "error":
		return centrifuge.LogLevelError
	default:
		return centrifuge.LogLevelInfo
	}
}
