package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const executionChannelPrefix = "executions:"

// Subscriber relays execution events published on Redis to the local hub,
// so a client can watch an execution tracked by another API replica.
type Subscriber struct {
	redisClient *redis.Client
	hub         *Hub
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
}

func NewSubscriber(redisClient *redis.Client, hub *Hub) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		redisClient: redisClient,
		hub:         hub,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (s *Subscriber) Start() {
	s.wg.Add(1)
	go s.subscribeToEvents()
}

func (s *Subscriber) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Subscriber) subscribeToEvents() {
	defer s.wg.Done()

	pubsub := s.redisClient.PSubscribe(s.ctx, executionChannelPrefix+"*")
	defer pubsub.Close()

	ch := pubsub.Channel()

	log.Info().Msg("WebSocket subscriber started")

	for {
		select {
		case <-s.ctx.Done():
			log.Info().Msg("WebSocket subscriber stopped")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage(msg)
		}
	}
}

func (s *Subscriber) handleMessage(msg *redis.Message) {
	executionID, ok := parseExecutionChannel(msg.Channel)
	if !ok {
		log.Warn().Str("channel", msg.Channel).Msg("Unexpected execution channel")
		return
	}

	payload := []byte(msg.Payload)
	s.hub.BroadcastToExecution(executionID, payload)

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(payload, &head); err == nil && IsTerminalEvent(head.Type) {
		s.hub.CloseExecution(executionID)
	}
}

func parseExecutionChannel(channel string) (string, bool) {
	id, ok := strings.CutPrefix(channel, executionChannelPrefix)
	return id, ok && id != ""
}

func IsTerminalEvent(eventType string) bool {
	switch eventType {
	case "execution.completed", "execution.failed", "execution.cancelled":
		return true
	}
	return false
}
