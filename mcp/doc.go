// Package mcp declares the wire-level data model of the Model Context
// Protocol subset this server speaks: method names, the tool descriptor and
// its input schema vocabulary, and the result shapes for initialize,
// tools/list, and tools/call.
//
// Types here marshal directly to the protocol's JSON forms and carry no
// behavior beyond construction helpers.
package mcp
