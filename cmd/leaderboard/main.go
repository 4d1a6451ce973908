package main

import (
	"context"
	"os"
	"os/signal"
	"osu-leaderboard/cmd/leaderboard/commands"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := commands.ExecuteContext(ctx)
	stop()
	os.Exit(code)
}
