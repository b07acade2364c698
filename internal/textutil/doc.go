// Package textutil provides small string helpers shared by the delivery
// channels and the viewer.
//
// Captions and titles are bounded per transport: Telegram photo captions stop
// at 1024 characters, Discord message content at 2000, and ntfy headers must
// stay on a single line. The helpers here operate on runes so multi-byte item
// names never get split mid-character.
package textutil
