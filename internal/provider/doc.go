// Package provider resolves a log to its segment chain and the loglet
// instances backing each segment. Backends are a closed set of factories
// registered by provider kind at construction.
//
// Writes always resolve against the current metadata version. Reads may use
// whatever snapshot the store hands out, since sealed segments never change.
package provider
