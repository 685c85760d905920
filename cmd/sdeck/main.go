// sdeck is a terminal dashboard for a file-sync daemon: it mirrors the
// daemon's per-folder sync state into a local SQLite cache and serves
// filtered views and a WebSocket feed on top of it.
package main

func main() {
	Execute()
}
