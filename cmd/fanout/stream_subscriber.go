package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// StreamSubscriber tails the record notification stream and forwards
// events to the Hub. It reads from the stream tail so every fanout
// instance sees every record; consumer groups are for the verifier, which
// needs exactly-once handling, not for broadcast.
type StreamSubscriber struct {
	redis  *redis.Client
	hub    *Hub
	stream string
}

// NewStreamSubscriber creates a new StreamSubscriber instance
func NewStreamSubscriber(redisClient *redis.Client, hub *Hub, stream string) *StreamSubscriber {
	return &StreamSubscriber{
		redis:  redisClient,
		hub:    hub,
		stream: stream,
	}
}

// Start begins tailing the record stream
func (s *StreamSubscriber) Start(ctx context.Context) {
	log.Printf("Stream subscriber started, tailing: %s", s.stream)

	// "$" means only records created after we attach
	lastID := "$"

	for {
		select {
		case <-ctx.Done():
			log.Println("Stream subscriber stopping")
			return
		default:
		}

		streams, err := s.redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.stream, lastID},
			Count:   64,
			Block:   5 * time.Second,
		}).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("Stream read error: %v", err)
			time.Sleep(time.Second)
			continue
		}

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				s.forward(msg)
			}
		}
	}
}

// forward decodes a stream entry and hands it to the hub
func (s *StreamSubscriber) forward(msg redis.XMessage) {
	payload, _ := msg.Values["payload"].(string)
	if payload == "" {
		log.Printf("Stream entry without payload: id=%s", msg.ID)
		return
	}

	// Peek at the uploader so the hub can route filtered subscriptions
	var event struct {
		Uploader string `json:"uploader"`
	}
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Printf("Invalid record event: id=%s, err=%v", msg.ID, err)
		return
	}

	log.Printf("Received record event: uploader=%s, size=%d bytes", event.Uploader, len(payload))

	s.hub.broadcast <- &Message{
		Uploader: event.Uploader,
		Data:     []byte(payload),
	}
}
