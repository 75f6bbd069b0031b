package notifications

import (
	"context"
	"encoding/json"
	"log"
	"runtime/debug"

	"github.com/redis/go-redis/v9"
)

// Redis pub/sub channels. The channel name encodes the routing: chat and
// graffiti frames fan out to their room, radio frames to every connection.
const (
	ChannelChat     = "majlis:chat"
	ChannelGraffiti = "majlis:graffiti"
	ChannelRadio    = "majlis:radio"
)

// wireFrame is the envelope published to Redis. ExcludeConnID only matters on
// the instance that owns that connection; everywhere else it excludes nothing.
type wireFrame struct {
	ExcludeConnID string          `json:"exclude_conn_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Notifier publishes realtime frames into Redis channels so every server
// instance can fan them out to its local connections.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether Redis-backed fan-out is available.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// Publish sends a frame to a channel, tagged with the connection to exclude.
func (n *Notifier) Publish(ctx context.Context, channel string, data []byte, excludeConnID string) error {
	if !n.Enabled() {
		return nil
	}
	frame, err := json.Marshal(wireFrame{ExcludeConnID: excludeConnID, Data: data})
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, channel, string(frame)).Err()
}

// StartSubscriber subscribes to the realtime channels and calls onMessage for
// each incoming frame. onMessage receives channel and payload.
func (n *Notifier) StartSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, ChannelChat, ChannelGraffiti, ChannelRadio)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in RealtimeSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// StartWiring connects the RoomHub to Redis pub/sub so frames published by
// any instance reach this instance's connections.
func (h *RoomHub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartSubscriber(ctx, func(channel, payload string) {
		var frame wireFrame
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			log.Printf("RoomHub: Failed to parse frame from channel %s: %v", channel, err)
			return
		}

		switch channel {
		case ChannelChat:
			h.BroadcastToRoom(RoomGlobalChat, frame.Data, frame.ExcludeConnID)
		case ChannelGraffiti:
			h.BroadcastToRoom(RoomGraffiti, frame.Data, frame.ExcludeConnID)
		case ChannelRadio:
			h.BroadcastAll(frame.Data)
		default:
			log.Printf("RoomHub: Unknown channel: %s", channel)
		}
	})
}

// Dispatcher routes outbound frames through Redis when available and falls
// back to direct local broadcast otherwise.
type Dispatcher struct {
	Hub      *RoomHub
	Notifier *Notifier
}

// NewDispatcher creates a Dispatcher over a hub and an optional notifier.
func NewDispatcher(hub *RoomHub, notifier *Notifier) *Dispatcher {
	return &Dispatcher{Hub: hub, Notifier: notifier}
}

// channelForRoom maps a room to its Redis channel.
func channelForRoom(room string) string {
	if room == RoomGraffiti {
		return ChannelGraffiti
	}
	return ChannelChat
}

// ToRoom delivers a frame to every member of a room, optionally excluding
// one connection.
func (d *Dispatcher) ToRoom(ctx context.Context, room string, data []byte, excludeConnID string) {
	if d.Notifier.Enabled() {
		if err := d.Notifier.Publish(ctx, channelForRoom(room), data, excludeConnID); err == nil {
			return
		}
		log.Printf("Dispatcher: Redis publish failed, falling back to local broadcast")
	}
	d.Hub.BroadcastToRoom(room, data, excludeConnID)
}

// ToAll delivers a frame to every connection on every instance.
func (d *Dispatcher) ToAll(ctx context.Context, data []byte) {
	if d.Notifier.Enabled() {
		if err := d.Notifier.Publish(ctx, ChannelRadio, data, ""); err == nil {
			return
		}
		log.Printf("Dispatcher: Redis publish failed, falling back to local broadcast")
	}
	d.Hub.BroadcastAll(data)
}
