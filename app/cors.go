package app

import (
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

const defaultWebOrigin = "http://localhost:5173"

func useCORS(r *gin.Engine, origin string) {
	if origin == "" {
		origin = defaultWebOrigin
	}
	cfg := cors.Config{
		AllowOrigins:     []string{origin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	// cors.New panics on a bad origin
	if err := cfg.Validate(); err != nil {
		log.Fatalf("WEB_ORIGIN %q: %v", origin, err)
	}
	r.Use(cors.New(cfg))
}
