// Package cli is the interactive VoxKeeper client.
//
// App runs a small REPL over the capture, sync and sweep services:
//
//	upload <path>   validate, optionally compress, then upload or queue offline
//	pending         list the offline queue
//	sync            drain the queue now
//	sweep           resolve recordings whose upload never finished
//	status          connectivity, queue size and last sync
//
// When stdout is a terminal, uploads draw a single progress bar across
// transcoding and transfer, and compression choices are asked interactively.
package cli
