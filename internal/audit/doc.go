// Package audit relays security-relevant engine events to a caller-supplied
// sink without blocking the request path.
//
// The engine decides which events to emit; this package only buffers and
// delivers them. A full buffer either drops (counting the drop) or blocks
// until the caller's context ends, depending on Config.DropIfFull.
package audit
