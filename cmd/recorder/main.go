package main

import (
	"context"

	"recorder-scraper/cmd/recorder/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
