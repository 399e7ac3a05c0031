package service

import (
	"context"
	"errors"
	"fmt"

	"golang-quant/config"
	"golang-quant/internal/dto"
	"golang-quant/pkg/apperror"
	"golang-quant/pkg/logger"

	"github.com/robfig/cron/v3"
)

type SchedulerService interface {
	Start() error
	Stop(ctx context.Context)
	// RefreshWeights submits a weighting run over the configured universe.
	RefreshWeights(ctx context.Context) error
}

type schedulerService struct {
	cfg       *config.Config
	log       *logger.Logger
	cron      *cron.Cron
	weighting WeightingService
}

func NewSchedulerService(cfg *config.Config, log *logger.Logger, weighting WeightingService) SchedulerService {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &schedulerService{
		cfg:       cfg,
		log:       log,
		cron:      cron.New(cron.WithParser(parser)),
		weighting: weighting,
	}
}

// Start registers the weighting refresh. It stays disabled without a cron
// expression or a configured asset universe.
func (s *schedulerService) Start() error {
	expr := s.cfg.Weighting.Cron
	if expr == "" || len(s.cfg.Weighting.Assets) == 0 {
		s.log.Info("Weighting refresh disabled")
		return nil
	}

	_, err := s.cron.AddFunc(expr, func() {
		if err := s.RefreshWeights(context.Background()); err != nil {
			s.log.ErrorContextWithAlert(context.Background(), "Scheduled weighting refresh failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid weighting cron %q: %w", expr, err)
	}

	s.cron.Start()
	s.log.Info("Scheduler started", logger.StringField("weighting_cron", expr))
	return nil
}

func (s *schedulerService) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		s.log.Warn("Scheduler stop timed out")
	}
}

func (s *schedulerService) RefreshWeights(ctx context.Context) error {
	if s.weighting.Status().InProgress {
		s.log.InfoContext(ctx, "Weighting refresh skipped, a run is already in progress")
		return nil
	}
	resp, err := s.weighting.Submit(ctx, dto.WeightsRequest{})
	if errors.Is(err, apperror.ErrAlreadyRunning) {
		s.log.InfoContext(ctx, "Weighting refresh skipped, a run is already in progress")
		return nil
	}
	if err != nil {
		return err
	}
	s.log.InfoContext(ctx, "Weighting refresh submitted", logger.StringField("task_id", resp.TaskID))
	return nil
}
