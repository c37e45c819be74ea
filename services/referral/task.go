package referral

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"tradepulse/pkg/config"
	"tradepulse/pkg/task"
)

const TaskCreditRetry = "referral:credit:retry"

func NewCreditRetryTask() *asynq.Task {
	return asynq.NewTask(TaskCreditRetry, nil, asynq.MaxRetry(3), asynq.Queue("low"))
}

// HandleCreditRetryTask drains one batch of uncredited commissions.
func (s *Service) HandleCreditRetryTask(ctx context.Context, t *asynq.Task) error {
	credited, err := s.CreditPending(ctx)
	if err != nil {
		zap.L().Error("credit retry sweep failed", zap.Error(err))
		return err
	}
	zap.L().Info("credit retry sweep finished", zap.Int("credited", credited))
	return nil
}

func registerTaskHandlers(mux *asynq.ServeMux, svc *Service) {
	mux.HandleFunc(TaskCreditRetry, svc.HandleCreditRetryTask)
}

// startCreditSchedule enqueues the retry sweep on the configured cron
// schedule, hourly when unset.
func startCreditSchedule(lc fx.Lifecycle, cfg *config.Config, enqueuer task.Enqueuer) error {
	schedule := cfg.Referral.RetrySchedule
	if schedule == "" {
		schedule = "@hourly"
	}

	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if _, err := enqueuer.Enqueue(NewCreditRetryTask()); err != nil {
			zap.L().Error("failed to enqueue credit retry task", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			zap.L().Info("credit retry schedule started", zap.String("schedule", schedule))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			<-c.Stop().Done()
			return nil
		},
	})
	return nil
}
