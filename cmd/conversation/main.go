package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awslambda "github.com/aws/aws-sdk-go-v2/service/lambda"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"

	"wisegpt/handler"
	"wisegpt/internal/config"
	"wisegpt/internal/domain"
	"wisegpt/internal/integrations/aiinvoke"
	"wisegpt/internal/integrations/sqsbus"
	"wisegpt/internal/repository"
	"wisegpt/internal/tokens"
	"wisegpt/internal/usecase"
)

func main() {
	ctx := context.Background()
	bootLog := zerolog.New(os.Stderr).With().Timestamp().Str("service", "conversation").Logger()

	// ---- Configuration (read only here) ----
	cfg, err := config.LoadConversation()
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to load configuration")
	}
	logger, err := config.NewLogger(os.Stdout, "conversation", cfg.LogLevel)
	if err != nil {
		bootLog.Fatal().Err(err).Msg("failed to build logger")
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load AWS config")
	}

	// ---- Clients ----
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.EventTable, cfg.EventTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event store")
	}
	eventBus, err := sqsbus.NewEventBus(awssqs.NewFromConfig(awsCfg), cfg.EventQueueURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create event bus")
	}
	trigger, err := aiinvoke.New(awslambda.NewFromConfig(awsCfg), cfg.AIFunctionName)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create ai trigger")
	}

	// ---- Handler ----
	settings := domain.Settings{Limits: cfg.Limits(), Estimator: tokens.Default()}
	service, err := usecase.NewConversationService(store, eventBus, trigger, settings, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create conversation service")
	}
	h, err := handler.NewCommandHandler(service, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create handler")
	}

	lambda.Start(h.HandleSQS)
}
