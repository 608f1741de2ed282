package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ai-shorts-factory/internal/pipeline"
	"ai-shorts-factory/internal/queue"
)

// rotation hands out themes round robin. An empty rotation always yields
// "", which makes the pipeline ask the topic finder.
type rotation struct {
	mu     sync.Mutex
	themes []string
	next   int
}

func (r *rotation) Next() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.themes) == 0 {
		return ""
	}
	t := r.themes[r.next%len(r.themes)]
	r.next++
	return t
}

// newCron registers job under every spec. Overlapping firings are skipped.
func newCron(specs []string, log *zap.Logger, job func()) (*cron.Cron, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("schedule.specs is empty")
	}
	logger := cron.PrintfLogger(zap.NewStdLog(log.Named("cron")))
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	for _, spec := range specs {
		if _, err := c.AddFunc(spec, job); err != nil {
			return nil, fmt.Errorf("schedule spec %q: %w", spec, err)
		}
	}
	return c, nil
}

func scheduleCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on the configured cron specs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			useQueue, _ := cmd.Flags().GetBool("enqueue")
			ctx := cmd.Context()
			themes := &rotation{themes: a.cfg.Schedule.Themes}
			publish := a.cfg.Schedule.Publish

			var job func()
			if useQueue {
				client, err := queue.NewRedisClient(a.cfg.Queue.RedisURL)
				if err != nil {
					return err
				}
				a.onClose(client.Close)
				q := queue.New(client, a.cfg.Queue.Name, a.log)
				job = func() {
					if _, err := q.Enqueue(ctx, queue.Job{Theme: themes.Next(), Publish: publish}); err != nil {
						a.log.Error("scheduled enqueue failed", zap.Error(err))
					}
				}
			} else {
				p, err := a.pipeline(publish)
				if err != nil {
					return err
				}
				job = func() {
					// failures are recorded in the run state and logged by the pipeline
					_, _ = p.Run(ctx, pipeline.Request{Theme: themes.Next(), Publish: publish})
				}
			}

			c, err := newCron(a.cfg.Schedule.Specs, a.log, job)
			if err != nil {
				return err
			}
			c.Start()
			a.log.Info("scheduler started", zap.Strings("specs", a.cfg.Schedule.Specs), zap.Bool("enqueue", useQueue))

			<-ctx.Done()
			a.log.Info("scheduler stopping, waiting for running jobs")
			<-c.Stop().Done()
			return nil
		},
	}
	cmd.Flags().Bool("enqueue", false, "Push jobs to the Redis queue instead of running them here")
	return cmd
}

func enqueueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Queue a pipeline run for a worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			theme, _ := cmd.Flags().GetString("theme")
			publish, _ := cmd.Flags().GetBool("publish")
			privacy, _ := cmd.Flags().GetString("privacy")

			client, err := queue.NewRedisClient(a.cfg.Queue.RedisURL)
			if err != nil {
				return err
			}
			a.onClose(client.Close)
			job, err := queue.New(client, a.cfg.Queue.Name, a.log).Enqueue(cmd.Context(), queue.Job{
				Theme:   theme,
				Publish: publish,
				Privacy: privacy,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s on %s\n", job.ID, a.cfg.Queue.Name)
			return nil
		},
	}
	cmd.Flags().String("theme", "", "Video theme (default: next research topic)")
	cmd.Flags().Bool("publish", false, "Upload the result to YouTube")
	cmd.Flags().String("privacy", "", "Upload privacy (default from config)")
	return cmd
}

func workerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run queued pipeline jobs until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			client, err := queue.NewRedisClient(a.cfg.Queue.RedisURL)
			if err != nil {
				return err
			}
			a.onClose(client.Close)

			// one pipeline per publish flag, built on first use
			runners := map[bool]*pipeline.Pipeline{}
			handle := func(ctx context.Context, job queue.Job) error {
				p, ok := runners[job.Publish]
				if !ok {
					var err error
					if p, err = a.pipeline(job.Publish); err != nil {
						return err
					}
					runners[job.Publish] = p
				}
				state, err := p.Run(ctx, pipeline.Request{Theme: job.Theme, Publish: job.Publish, Privacy: job.Privacy})
				if err != nil {
					return err
				}
				a.log.Info("job done", zap.String("job", job.ID), zap.String("run", state.RunID))
				return nil
			}

			err = queue.New(client, a.cfg.Queue.Name, a.log).Listen(cmd.Context(), handle)
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
}
