package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/Lllllllleong/conferenceportal/internal/cli"
	"github.com/Lllllllleong/conferenceportal/internal/logging"
	"github.com/Lllllllleong/conferenceportal/internal/services"
	"github.com/Lllllllleong/conferenceportal/internal/store"
)

func main() {
	logging.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand(func(ctx context.Context) (store.Store, error) {
		backend, err := services.NewBackend(ctx, false)
		if err != nil {
			return nil, err
		}
		return backend.Store, nil
	})
	// cobra already printed the error.
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
