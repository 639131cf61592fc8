// ABOUTME: clawlink watch subcommand
// ABOUTME: Subscribes to gateway topics and prints events until interrupted

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/2389/clawlink/internal/link"
	"github.com/2389/clawlink/internal/wire"
)

func cmdWatch(ctx context.Context, args []string) error {
	fl, topics, err := parseLinkFlags(args)
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		topics = []string{
			wire.TopicIdentity,
			wire.TopicVaultIndex,
			wire.TopicBrowserUpdate,
			wire.TopicTradingEvent,
		}
	}

	s, err := openSession(ctx, fl)
	if err != nil {
		return err
	}
	defer s.close()

	s.lk.Subscribe(wire.TopicConnectionStatus, func(_ string, payload json.RawMessage) {
		var ch link.StateChange
		if err := json.Unmarshal(payload, &ch); err != nil {
			return
		}
		printStateLine(ch)
	})
	for _, topic := range topics {
		s.lk.Subscribe(topic, func(topic string, payload json.RawMessage) {
			printEvent(topic, payload)
		})
	}

	if fl.reconnect {
		go runReconnector(ctx, s.lk, s.logger, subscribeChanges(s.lk))
	}

	fmt.Printf("watching %s on %s (Ctrl+C to stop)\n", strings.Join(topics, ", "), s.lk.Endpoint())
	if err := s.lk.Connect(ctx); err != nil {
		if !fl.reconnect {
			return err
		}
		fmt.Printf("[error] %v\n", err)
	}

	<-ctx.Done()
	fmt.Println()
	return nil
}
