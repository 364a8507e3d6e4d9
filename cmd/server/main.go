// Command server runs the webhook HTTP front end: the WhatsApp Cloud API
// verification handshake and authenticated payload ingestion into the
// durable local queue. It does no message processing itself; cmd/worker
// drains the queue it writes to.
package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"caseflow/internal/config"
	"caseflow/internal/httpapi"
	"caseflow/internal/metrics"
	"caseflow/internal/queue"
	"caseflow/internal/whatsappapi"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	waCfg, err := config.LoadWhatsAppConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid WhatsApp configuration")
	}
	workerCfg := config.LoadWorkerConfig()

	store, err := queue.Open(workerCfg.QueueDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue store")
	}
	defer store.Close()

	wa := whatsappapi.NewClient(waCfg)
	reg := metrics.New()
	handler := httpapi.New(waCfg, store, wa, reg)

	r := gin.Default()
	handler.Register(r)
	r.GET("/metrics", gin.WrapH(reg.Handler()))

	addr := ":" + getEnvOrDefault("PORT", "8080")
	log.Info().Str("addr", addr).Msg("webhook server listening")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
