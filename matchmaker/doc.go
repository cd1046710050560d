// Package matchmaker implements a Discord "looking for group" (LFG) bot.
//
// Users post LFG ads with the /lfg command; the bot broadcasts each ad to
// every guild that has configured an LFG channel. Broadcast posts carry a
// Connect button, which introduces interested players to the ad owner over
// DM, and a Report button, which opens a moderation report.
//
// Reports materialize as dedicated text channels in the bot's moderation
// guild, where moderators act through a persistent button view (ask the
// reporter, warn, timeout, ban, view history, resolve). A DM relay bridges
// the reporter and the report channel so moderators can converse with the
// reporter directly.
//
// Key components:
//
//   - Matchmaker: The main struct encapsulating the bot's core functionality.
//   - Discord: Gateway session management and interaction handling.
//   - API: A small HTTP surface for health checks and status.
//   - DBI: Data persistence over PostgreSQL (production) or SQLite.
//
// Operational settings (cooldowns, broadcast limits, custom status, log
// levels) live in a database-backed runtime configuration shared across
// instances via PostgreSQL LISTEN/NOTIFY.
package matchmaker
