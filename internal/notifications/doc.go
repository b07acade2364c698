// Package notifications delivers rendered item artifacts to chat transports.
//
// Each configured destination becomes a Channel: one per Telegram chat, one per
// Discord webhook, and one per ntfy topic. A Channel sends a single Delivery
// (the PNG bytes plus a caption) and reports failure through its error; retry
// and bookkeeping belong to the dispatcher so channels stay stateless.
//
// BuildChannels assembles the set from config.toml. Captions are trimmed to
// each transport's limits here, so callers can hand over the full text.
package notifications
