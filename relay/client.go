// Copyright 2026 The Nostrforge Authors
// SPDX-License-Identifier: Apache-2.0

package relay

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/coder/websocket"

	"github.com/nostrforge/nostrforge/lib/event"
)

// maxFrameBytes is the read limit for relay frames. Repository
// announcements and transfer chains are small; anything near this
// limit is a misbehaving relay.
const maxFrameBytes = 1 << 21

// connector is the single-relay transport. The pool fans out over it;
// tests substitute a fake.
type connector interface {
	fetch(ctx context.Context, relayURL string, filters []event.Filter) ([]event.Event, error)
	publish(ctx context.Context, relayURL string, ev event.Event) error
}

// wsConnector speaks the relay websocket protocol: REQ/EVENT/EOSE for
// queries, EVENT/OK for publishes. Every operation dials a fresh
// connection bounded by the configured timeout so one hung relay can
// never stall a workflow.
type wsConnector struct {
	timeout time.Duration
	logger  *slog.Logger
}

func (c *wsConnector) fetch(ctx context.Context, relayURL string, filters []event.Filter) ([]event.Event, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, relayURL, nil)
	if err != nil {
		return nil, Transient(fmt.Errorf("dialing relay %s: %w", relayURL, err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxFrameBytes)

	subID := newSubscriptionID()
	request := make([]any, 0, 2+len(filters))
	request = append(request, "REQ", subID)
	for _, f := range filters {
		request = append(request, f)
	}
	frame, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("encoding subscription request: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return nil, Transient(fmt.Errorf("sending subscription to %s: %w", relayURL, err))
	}

	var events []event.Event
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return nil, Transient(fmt.Errorf("reading from relay %s: %w", relayURL, err))
		}
		label, payload, err := splitFrame(data)
		if err != nil {
			return nil, fmt.Errorf("relay %s: %w", relayURL, err)
		}
		switch label {
		case "EVENT":
			if len(payload) < 2 {
				return nil, fmt.Errorf("relay %s: EVENT frame without event payload", relayURL)
			}
			var ev event.Event
			if err := json.Unmarshal(payload[1], &ev); err != nil {
				c.logger.Warn("discarding undecodable event", "relay", relayURL, "error", err)
				continue
			}
			events = append(events, ev)
		case "EOSE":
			closeFrame, _ := json.Marshal([]any{"CLOSE", subID})
			_ = conn.Write(ctx, websocket.MessageText, closeFrame)
			return events, nil
		case "CLOSED":
			return nil, Transient(fmt.Errorf("relay %s closed subscription: %s", relayURL, frameMessage(payload, 1)))
		case "NOTICE":
			c.logger.Debug("relay notice", "relay", relayURL, "notice", frameMessage(payload, 0))
		default:
			// Unknown frame labels are ignored for forward compatibility.
		}
	}
}

func (c *wsConnector) publish(ctx context.Context, relayURL string, ev event.Event) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, relayURL, nil)
	if err != nil {
		return Transient(fmt.Errorf("dialing relay %s: %w", relayURL, err))
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(maxFrameBytes)

	frame, err := json.Marshal([]any{"EVENT", ev})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
		return Transient(fmt.Errorf("sending event to %s: %w", relayURL, err))
	}

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return Transient(fmt.Errorf("awaiting acknowledgement from %s: %w", relayURL, err))
		}
		label, payload, err := splitFrame(data)
		if err != nil {
			return fmt.Errorf("relay %s: %w", relayURL, err)
		}
		if label != "OK" {
			continue
		}
		if len(payload) < 3 {
			return fmt.Errorf("relay %s: malformed OK frame", relayURL)
		}
		var id string
		var accepted bool
		if err := json.Unmarshal(payload[1], &id); err != nil || id != ev.ID {
			continue // acknowledgement for a different event
		}
		if err := json.Unmarshal(payload[2], &accepted); err != nil {
			return fmt.Errorf("relay %s: malformed OK status", relayURL)
		}
		if !accepted {
			// A considered rejection is permanent; retrying the same
			// bytes cannot change the relay's mind.
			return fmt.Errorf("relay %s rejected event: %s", relayURL, frameMessage(payload, 3))
		}
		return nil
	}
}

// splitFrame decodes a relay frame into its label and raw elements.
func splitFrame(data []byte) (string, []json.RawMessage, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return "", nil, fmt.Errorf("malformed frame: %w", err)
	}
	if len(elements) == 0 {
		return "", nil, fmt.Errorf("empty frame")
	}
	var label string
	if err := json.Unmarshal(elements[0], &label); err != nil {
		return "", nil, fmt.Errorf("frame label is not a string")
	}
	return label, elements[1:], nil
}

// frameMessage extracts an optional string element from a frame,
// returning "" when absent.
func frameMessage(payload []json.RawMessage, index int) string {
	if index >= len(payload) {
		return ""
	}
	var message string
	if err := json.Unmarshal(payload[index], &message); err != nil {
		return ""
	}
	return message
}

func newSubscriptionID() string {
	var raw [8]byte
	_, _ = rand.Read(raw[:])
	return hex.EncodeToString(raw[:])
}
