package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"school_library/app"
	"school_library/config"
	"school_library/routes"
)

func main() {
	config.LoadEnv()
	application := app.MustNew()
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	application.StartOverdueScans(ctx)

	r := application.Router
	routes.RegisterRoutes(r, application)

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}
	log.Printf("listening on :%s", port)
	_ = r.Run(":" + port)
}
