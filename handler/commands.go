package handler

import (
	"context"
	"errors"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"

	"wisegpt/internal/domain"
	"wisegpt/internal/usecase"
)

type CommandExecutor interface {
	Execute(ctx context.Context, cmd domain.Command) error
}

// CommandHandler consumes the conversation command queue.
type CommandHandler struct {
	commands CommandExecutor
	logger   zerolog.Logger
}

func NewCommandHandler(commands CommandExecutor, logger zerolog.Logger) (*CommandHandler, error) {
	if commands == nil {
		return nil, errors.New("handler: command executor must not be nil")
	}
	return &CommandHandler{commands: commands, logger: logger}, nil
}

// HandleSQS executes every record of the batch and reports the records worth
// redelivering. Once a record of a message group fails, the later records of
// that group are reported too without being executed, keeping each
// conversation in order. Records that can never succeed are logged and
// acknowledged.
func (h *CommandHandler) HandleSQS(ctx context.Context, ev events.SQSEvent) (events.SQSEventResponse, error) {
	var resp events.SQSEventResponse
	failedGroups := map[string]bool{}

	for _, record := range ev.Records {
		group := record.Attributes["MessageGroupId"]
		log := h.logger.With().
			Str("messageId", record.MessageId).
			Str("messageGroupId", group).
			Logger()

		if group != "" && failedGroups[group] {
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			continue
		}

		cmd, err := domain.UnmarshalCommand([]byte(record.Body))
		if err != nil {
			log.Error().Err(err).Msg("dropping undecodable command")
			continue
		}

		err = h.commands.Execute(ctx, cmd)
		switch {
		case err == nil:
			log.Debug().Str("command", string(cmd.Type())).Msg("command executed")
		case usecase.Retryable(err):
			log.Warn().Err(err).Str("command", string(cmd.Type())).Msg("command failed, will retry")
			resp.BatchItemFailures = append(resp.BatchItemFailures, events.SQSBatchItemFailure{ItemIdentifier: record.MessageId})
			if group != "" {
				failedGroups[group] = true
			}
		default:
			log.Error().
				Err(err).
				Str("command", string(cmd.Type())).
				Str("code", string(usecase.CodeOf(err))).
				Msg("command rejected")
		}
	}
	return resp, nil
}
