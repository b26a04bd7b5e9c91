package main

import (
	"log"

	"glossary-review/internal/bootstrap"
	"glossary-review/internal/config"
	"glossary-review/internal/transport/rest"
)

func main() {
	rt, err := config.LoadRuntime()
	if err != nil {
		log.Fatalf("load runtime config: %v", err)
	}
	logger := bootstrap.NewLogger(rt.Log)

	app, err := bootstrap.New(*rt, logger)
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}
	defer app.Close()

	app.Handler = rest.NewRouter(app, logger)
	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
