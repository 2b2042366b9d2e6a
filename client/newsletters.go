package client

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	v1 "botadmin/pkg/api/v1"
	"botadmin/pkg/constraints"
	"botadmin/pkg/logger"

	"go.uber.org/zap"
)

const (
	newslettersPath = "newsletters/"
	tasksPath       = "newsletter-tasks/"

	DefaultProgressInterval = 2 * time.Second
	maxProgressBackoff      = 30 * time.Second
)

type NewslettersService struct {
	c *Client
}

func (c *Client) Newsletters() *NewslettersService {
	return &NewslettersService{c: c}
}

func (s *NewslettersService) List(ctx context.Context) ([]v1.Newsletter, error) {
	return getList[v1.Newsletter](ctx, s.c, newslettersPath, nil)
}

func (s *NewslettersService) Get(ctx context.Context, id int64) (*v1.Newsletter, error) {
	var n v1.Newsletter
	if err := s.c.Get(ctx, itemPath(newslettersPath, id), nil, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Create schedules a newsletter. An empty channel leaves the server default.
func (s *NewslettersService) Create(ctx context.Context, n v1.Newsletter) (*v1.Newsletter, error) {
	if n.Channel != "" && !constraints.ValidChannel(n.Channel) {
		return nil, fmt.Errorf("newsletter: unknown channel %q", n.Channel)
	}
	var out v1.Newsletter
	if err := s.c.Post(ctx, newslettersPath, n, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *NewslettersService) Delete(ctx context.Context, id int64) error {
	return s.c.Delete(ctx, itemPath(newslettersPath, id))
}

func (s *NewslettersService) UploadImage(ctx context.Context, newsletterID int64, image File) (*v1.NewsletterImage, error) {
	var out v1.NewsletterImage
	form := NewForm().AddFile("image", image)
	if err := s.c.Upload(ctx, http.MethodPost, fmt.Sprintf("%s%d/upload-image/", newslettersPath, newsletterID), form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *NewslettersService) Progress(ctx context.Context) ([]v1.NewsletterProgress, error) {
	return getList[v1.NewsletterProgress](ctx, s.c, newslettersPath+"progress/", nil)
}

func (s *NewslettersService) Tasks(ctx context.Context) ([]v1.NewsletterTask, error) {
	return getList[v1.NewsletterTask](ctx, s.c, tasksPath, nil)
}

func (s *NewslettersService) PendingTasks(ctx context.Context) ([]v1.NewsletterTask, error) {
	return getList[v1.NewsletterTask](ctx, s.c, tasksPath+"pending/", nil)
}

func (s *NewslettersService) FailedTasks(ctx context.Context) ([]v1.NewsletterTask, error) {
	return getList[v1.NewsletterTask](ctx, s.c, tasksPath+"failed/", nil)
}

// WatchProgress polls delivery progress and hands every snapshot to fn. It
// returns nil once every newsletter is complete, ctx.Err() when cancelled,
// and the error itself for failures a retry cannot fix. Unreachable
// servers and 5xx responses are retried with jittered exponential backoff.
// An empty snapshot counts as complete: with no newsletters it stops after
// one poll.
func (s *NewslettersService) WatchProgress(ctx context.Context, interval time.Duration, fn func([]v1.NewsletterProgress)) error {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	backoff := interval

	for {
		items, err := s.Progress(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !retryable(err) {
				return err
			}
			jitter := time.Duration(rand.Int63n(int64(backoff/2) + 1))
			logger.Warn("newsletter progress poll failed", zap.Error(err), zap.Duration("retry_in", backoff+jitter))
			if err := sleep(ctx, backoff+jitter); err != nil {
				return err
			}
			backoff *= 2
			if backoff > maxProgressBackoff {
				backoff = maxProgressBackoff
			}
			continue
		}

		backoff = interval
		fn(items)
		if progressComplete(items) {
			return nil
		}
		if err := sleep(ctx, interval); err != nil {
			return err
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, ErrSessionTerminated) {
		return false
	}
	if errors.Is(err, ErrUnreachable) {
		return true
	}
	return StatusCode(err) >= 500
}

// progressComplete is vacuously true for an empty snapshot.
func progressComplete(items []v1.NewsletterProgress) bool {
	for _, item := range items {
		if item.Progress < constraints.ProgressComplete {
			return false
		}
	}
	return true
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
