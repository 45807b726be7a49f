// Package engine defines the render abstraction: a Request/Response pair, a
// progress callback, and the Engine interface implemented by the sidplay CLI
// adapter and the deterministic stub.
package engine
