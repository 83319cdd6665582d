// Package enumerate produces the full live channel set from the Slack API,
// enriching each channel with last-activity data from the cache or a fresh
// history fetch.
package enumerate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guardzcom/slack-channel-cleanup/internal/cache"
	"github.com/guardzcom/slack-channel-cleanup/internal/config"
	"github.com/guardzcom/slack-channel-cleanup/internal/domain"
	"github.com/guardzcom/slack-channel-cleanup/internal/slackapi"
)

type Enumerator struct {
	API   slackapi.API
	Cache *cache.Store
	Cfg   *config.Config
	Out   io.Writer
	Sleep func(time.Duration)
}

func (e *Enumerator) sleep(d time.Duration) {
	if e.Sleep != nil {
		e.Sleep(d)
		return
	}
	time.Sleep(d)
}

func (e *Enumerator) printf(format string, args ...any) {
	if e.Out != nil {
		fmt.Fprintf(e.Out, format+"\n", args...)
	}
}

// Enumerate pages through the workspace channel list and fills in activity
// data. Auth and scope errors abort with no partial result; per-channel
// activity failures only leave that channel's activity unset. The refreshed
// cache is written unless dryRun is set.
func (e *Enumerator) Enumerate(ctx context.Context, useCache, forceRefresh, dryRun bool) ([]domain.Channel, error) {
	channels, err := e.listAll(ctx)
	if err != nil {
		return nil, err
	}

	entry := cache.Entry{}
	if useCache && !forceRefresh {
		entry = e.Cache.Load(ctx)
	}
	hits := cache.Apply(channels, entry)
	if hits > 0 {
		e.printf("Activity for %d of %d channels served from cache", hits, len(channels))
	}

	var misses []int
	for i := range channels {
		if channels[i].LastActivity == "" {
			misses = append(misses, i)
		}
	}
	if len(misses) > 0 {
		e.printf("Fetching activity for %d channels...", len(misses))
		e.fetchActivity(ctx, channels, misses)
	}

	if !dryRun {
		e.Cache.Save(ctx, channels)
	}
	return channels, nil
}

// listAll paginates conversations.list. Rate-limited pages are retried with
// the server-suggested delay up to the configured cap; malformed entries are
// dropped rather than failing the page.
func (e *Enumerator) listAll(ctx context.Context) ([]domain.Channel, error) {
	var all []domain.Channel
	cursor := ""
	page := 1
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		batch, next, err := e.listPage(ctx, cursor)
		if err != nil {
			return nil, err
		}
		kept := 0
		for _, ch := range batch {
			if ch.ID == "" || ch.Name == "" {
				e.printf("warning: dropping malformed channel entry on page %d", page)
				continue
			}
			all = append(all, ch)
			kept++
		}
		e.printf("Found %d channels on page %d (total %d)", kept, page, len(all))
		if next == "" {
			break
		}
		cursor = next
		page++
		e.sleep(e.Cfg.Slack.RatePause.Std())
	}
	return all, nil
}

func (e *Enumerator) listPage(ctx context.Context, cursor string) ([]domain.Channel, string, error) {
	var lastErr error
	for attempt := 0; attempt < e.Cfg.Slack.RetryCap; attempt++ {
		batch, next, err := e.API.ListChannels(ctx, cursor, e.Cfg.Slack.PageSize)
		if err == nil {
			return batch, next, nil
		}
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			return nil, "", err // non-retryable, no partial result
		}
		var rej *domain.RemoteRejection
		if errors.As(err, &rej) && rej.Cause == domain.RejectMissingScope {
			// A token that cannot list channels is a setup problem, not
			// a per-channel rejection.
			return nil, "", &domain.ConfigError{
				Reason: "the Slack token is missing a scope required to list channels",
				Err:    err,
			}
		}
		var rl *domain.RateLimitedError
		if errors.As(err, &rl) {
			delay := rl.RetryAfter
			if delay <= 0 {
				delay = e.Cfg.Slack.RatePause.Std()
			}
			delay <<= attempt
			e.printf("Rate limited, retrying in %s...", delay)
			e.sleep(delay)
			lastErr = err
			continue
		}
		return nil, "", fmt.Errorf("list channels: %w", err)
	}
	return nil, "", fmt.Errorf("list channels: rate limit retries exhausted: %w", lastErr)
}

// fetchActivity fills activity for the channels at the given indexes, one
// bounded batch in flight at a time with a pause between batches.
func (e *Enumerator) fetchActivity(ctx context.Context, channels []domain.Channel, misses []int) {
	batch := e.Cfg.Cache.ActivityBatch
	for start := 0; start < len(misses); start += batch {
		end := start + batch
		if end > len(misses) {
			end = len(misses)
		}
		g := new(errgroup.Group)
		for _, idx := range misses[start:end] {
			idx := idx
			g.Go(func() error {
				ts, snippet, err := e.API.LatestActivity(ctx, channels[idx].ID)
				if err != nil {
					e.printf("warning: could not fetch activity for #%s: %v", channels[idx].Name, err)
					return nil // isolated; never aborts enumeration
				}
				if !ts.IsZero() {
					channels[idx].LastActivity = ts.Format("2006-01-02")
					channels[idx].LastMessage = snippet
				}
				return nil
			})
		}
		_ = g.Wait()
		if end < len(misses) {
			e.sleep(e.Cfg.Slack.RatePause.Std())
		}
	}
}
