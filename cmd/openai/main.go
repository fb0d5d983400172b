package main

import (
	"context"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog"

	"wisegpt/handler"
	"wisegpt/internal/config"
	"wisegpt/internal/integrations/openai"
	"wisegpt/internal/integrations/paramstore"
	"wisegpt/internal/integrations/sqsbus"
	"wisegpt/internal/usecase"
)

func main() {
	ctx := context.Background()
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Str("service", "openai").Logger()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadAI()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger, err := config.NewLogger(os.Stdout, "openai", cfg.LogLevel)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to build logger")
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load AWS config")
	}

	// ---- Clients ----
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg), cfg.ParamCacheTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create SSM client")
	}
	openaiClient, err := openai.NewClient(params, cfg.ParamPrefix,
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithHTTPClient(&http.Client{Timeout: cfg.OpenAITimeout}),
		openai.WithMaxTokens(cfg.OpenAIMaxTokens),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create OpenAI client")
	}
	commandBus, err := sqsbus.NewCommandBus(awssqs.NewFromConfig(awsCfg), cfg.CommandQueueURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create command bus")
	}

	// ---- Handler ----
	responder, err := usecase.NewResponder(params, openaiClient, commandBus, cfg.ParamPrefix, cfg.BotName, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create responder")
	}
	h, err := handler.NewAIHandler(responder, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.Handle)
}
