package main

import "ai-shorts-factory/internal/cli"

func main() {
	cli.Main()
}
