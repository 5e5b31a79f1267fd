// Command vench is the CLI for the vench voice diary service. `vench serve`
// runs the daemon; the other commands talk to it over its HTTP API.
package main
