// Command worker runs the single cooperative polling loop that drains the
// durable local queue, ingests WhatsApp messages into cases, and generates
// agent responses.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"caseflow/internal/agent"
	"caseflow/internal/casehandler"
	"caseflow/internal/config"
	"caseflow/internal/lock"
	"caseflow/internal/metrics"
	"caseflow/internal/objectstore"
	"caseflow/internal/queue"
	"caseflow/internal/storage"
	"caseflow/internal/whatsappapi"
	"caseflow/internal/worker"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bucketCfg, err := config.LoadBucketConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid object store configuration")
	}
	waCfg, err := config.LoadWhatsAppConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid WhatsApp configuration")
	}
	workerCfg := config.LoadWorkerConfig()
	agentCfg := config.LoadAgentConfig()
	lockCfg := config.LoadLockConfig()

	objStore, err := objectstore.NewClient(ctx, bucketCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to object store")
	}

	queueStore, err := queue.Open(workerCfg.QueueDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open queue store")
	}
	defer queueStore.Close()

	wa := whatsappapi.NewClient(waCfg)
	reg := metrics.New()

	provider, modelID, err := agent.NewProviderForAlias(ctx, agentCfg.ModelAlias, agent.ProviderKeys{
		AnthropicAPIKey: agentCfg.AnthropicAPIKey,
		OpenAIAPIKey:    agentCfg.OpenAIAPIKey,
		OpenAIBaseURL:   agentCfg.OpenAIBaseURL,
		GoogleAPIKey:    agentCfg.GoogleAPIKey,
	})
	if err != nil {
		log.Fatal().Err(err).Str("alias", agentCfg.ModelAlias).Msg("failed to construct agent provider")
	}

	responder, err := agent.New(agent.Config{
		Name:         "caseflow-agent",
		SystemPrompt: agentCfg.SystemPrompt,
		Provider:     provider,
		ModelID:      modelID,
		PostProcessors: []agent.PostProcessor{
			whatsappapi.MarkdownToWhatsApp,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct agent")
	}
	hooks := &casehandler.DefaultHooks{Agent: responder, MaxTokens: agentCfg.MaxTokens}

	factory := func(operatorID, userID, userPhoneNumber string) *casehandler.CaseHandler {
		s := storage.New(objStore, operatorID, userID)
		locker := lock.New(objStore, s.Keys().LocksDir(), lockCfg.Timeout, lockCfg.PollInterval, lockCfg.TTL)
		return casehandler.New(casehandler.Config{
			Storage:          s,
			Locker:           locker,
			WhatsApp:         wa,
			UserPhoneNumber:  userPhoneNumber,
			ProcessMessage:   hooks.ProcessMessage,
			GenerateResponse: hooks.GenerateResponse,
		})
	}

	w := worker.New(queueStore, wa, factory, reg, workerCfg.PollIntervalBusy, workerCfg.PollIntervalIdle, workerCfg.ResponseDelay)
	log.Info().Str("model_alias", agentCfg.ModelAlias).Str("model", modelID).Msg("worker starting")
	w.Run(ctx)
}
