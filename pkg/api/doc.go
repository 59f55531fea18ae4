// Package api holds the stable wire schemas (v1) shared by the CLI output,
// the queue transports and the checkpoint store. It imports nothing from
// internal/.
package api
