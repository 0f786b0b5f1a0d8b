// Package chat connects the bot to Kick chatrooms and routes every inbound
// message through moderation and command handling.
//
// It provides three entrypoints:
//   - Gateway: a websocket client speaking Kick's Pusher-style event protocol.
//     It subscribes to one channel per joined chatroom, decodes chat message
//     events, answers pings, and reconnects with exponential backoff.
//   - Router: the per-message pipeline. First-time chatter greeting, then the
//     moderation filters (a firing decision is applied and logged, and stops
//     processing), then command dispatch and points activity tracking.
//   - StartAutoJoin: polls enabled accounts and keeps the gateway joined to
//     exactly the chatrooms of enabled tenants, firing live notifications on
//     stream-up transitions.
//
// Outbound messages go through Sender, which rate limits per chatroom so a
// command storm cannot trip Kick's spam protection.
package chat
