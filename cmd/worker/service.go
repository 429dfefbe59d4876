package main

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/warehouse-flow/internal/notifications"
	"github.com/angelmondragon/warehouse-flow/pkg/logger"
)

type pinger interface {
	Ping(context.Context) error
}

type consumer interface {
	Name() string
	Run(ctx context.Context, subscription notifications.Receiver) error
}

// Binding pairs an alert consumer with the subscription it drains.
type Binding struct {
	Consumer     consumer
	Subscription notifications.Receiver
}

type ServiceParams struct {
	Logger   *logger.Logger
	Redis    pinger
	PubSub   pinger
	Bindings []Binding
}

type Service struct {
	logg     *logger.Logger
	redis    pinger
	pubsub   pinger
	bindings []Binding
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if len(params.Bindings) == 0 {
		return nil, errors.New("at least one consumer is required")
	}
	for _, b := range params.Bindings {
		if b.Consumer == nil || b.Subscription == nil {
			return nil, errors.New("consumer and subscription are required")
		}
	}
	return &Service{
		logg:     params.Logger,
		redis:    params.Redis,
		pubsub:   params.PubSub,
		bindings: params.Bindings,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	return pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run drains every subscription until ctx is canceled. The first consumer to
// fail stops the others.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, b := range s.bindings {
		b := b
		group.Go(func() error {
			runCtx := s.logg.WithField(groupCtx, "consumer", b.Consumer.Name())
			s.logg.Info(runCtx, "consumer started")
			err := b.Consumer.Run(runCtx, b.Subscription)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(runCtx, "consumer stopped unexpectedly", err)
				return fmt.Errorf("%s: %w", b.Consumer.Name(), err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
