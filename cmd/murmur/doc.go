// Command murmur is the CLI and daemon entry point for the murmur voice-note
// sync service.
package main
