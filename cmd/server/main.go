package main

import (
	"fmt"
	"os"

	"github.com/videopipeline/orchestrator/internal/app"
)

func main() {
	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	fmt.Printf("Server listening on :%s\n", a.Cfg.Port)
	if err := a.Run(":" + a.Cfg.Port); err != nil {
		a.Log.Warn("server stopped", "error", err)
	}
}
