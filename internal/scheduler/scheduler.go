package scheduler

import (
	"context"
	"errors"
	"fmt"
	"os"

	pdlhttp "github.com/tanq16/pdl/internal/downloaders/http"
	"github.com/tanq16/pdl/internal/utils"
)

// Reporter receives the per-download events of a run.
type Reporter interface {
	Register(url string) int
	SetMessage(id int, message string)
	SetProgress(id int, percent int)
	Complete(id int, path string)
	ReportError(id int, message string)
}

type Options struct {
	// KeepExisting renames the destination to a free "name-(n).ext" instead
	// of replacing a file that is already there.
	KeepExisting bool
}

// Run downloads every entry one after another on engine. A failed entry does
// not stop the run; the returned error reports how many failed.
func Run(ctx context.Context, engine *pdlhttp.Engine, entries []utils.DownloadEntry, reporter Reporter, opts Options) error {
	log := utils.GetLogger("scheduler")
	ids := make([]int, len(entries))
	for i, entry := range entries {
		ids[i] = reporter.Register(entry.URL)
	}
	failed := 0
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			for _, id := range ids[i:] {
				reporter.ReportError(id, "download cancelled")
			}
			return err
		}
		if err := runOne(ctx, engine, entry, ids[i], reporter, opts); err != nil {
			log.Debug().Err(err).Str("url", entry.URL).Msg("Batch entry failed")
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d downloads failed", failed, len(entries))
	}
	return nil
}

func runOne(ctx context.Context, engine *pdlhttp.Engine, entry utils.DownloadEntry, id int, reporter Reporter, opts Options) error {
	reporter.SetMessage(id, "Checking connection and fetching file info")
	info, err := engine.Probe(ctx, entry.URL)
	if err != nil && !errors.Is(err, pdlhttp.ErrProbeFallback) {
		reporter.ReportError(id, err.Error())
		return err
	}
	outputPath := utils.ResolveOutputPath(entry.OutputPath, info.SuggestedFileName)
	if opts.KeepExisting {
		if _, err := os.Stat(outputPath); err == nil {
			outputPath = utils.RenewOutputPath(outputPath)
		}
	}
	task, err := engine.Start(ctx, entry.URL, outputPath, &info, Callbacks(reporter, id))
	if err != nil {
		reporter.ReportError(id, err.Error())
		return err
	}
	_, err = task.Wait()
	return err
}

// Callbacks routes engine events for one download to reporter.
func Callbacks(reporter Reporter, id int) utils.Callbacks {
	return utils.Callbacks{
		OnStatus:   func(msg string) { reporter.SetMessage(id, msg) },
		OnProgress: func(percent int) { reporter.SetProgress(id, percent) },
		OnComplete: func(path string) { reporter.Complete(id, path) },
		OnFailure:  func(msg string) { reporter.ReportError(id, msg) },
	}
}
