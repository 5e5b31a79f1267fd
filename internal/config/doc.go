// Package config loads, normalizes, and validates vench configuration.
//
// Configuration lives in TOML (default ~/.config/vench/config.toml, falling
// back to ./vench.toml). A .env file next to the config, or in the working
// directory, is loaded first so secrets can stay out of the TOML file.
// Environment variables override the LLM API key and the API token. Callers
// construct a Config once at startup and pass it by pointer.
package config
