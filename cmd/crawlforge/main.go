// Command crawlforge drives an autonomous mobile UI exploration run: it
// wires together device automation, an LLM adapter, and on-disk persistence
// into a CrawlLoop, and exposes it through a small set of cobra subcommands.
package main

func main() {
	Execute()
}
