package config

import (
	"log"

	"github.com/joho/godotenv"
)

// LoadEnv loads .env into the process environment. A missing file is fine;
// real deployments set the variables directly.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded:", err)
	}
}
