package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/Afterbark/youtube-to-mp3/types"
	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
)

const cliPollInterval = 200 * time.Millisecond

// DownloadOnce runs a single task in the foreground, rendering its progress
// to out, and returns the finished task
func DownloadOnce(ctx context.Context, app *App, sourceURL string, out io.Writer) (types.Task, error) {
	task, err := app.Downloader.Submit(sourceURL)
	if err != nil {
		return types.Task{}, err
	}

	bar := progressbar.NewOptions(100,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription("queued"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionClearOnFinish(),
	)

	ticker := time.NewTicker(cliPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return task, ctx.Err()
		case <-ticker.C:
		}

		current, ok := app.Store.Get(task.ID)
		if !ok {
			return task, types.ErrTaskNotFound
		}
		task = current

		bar.Describe(describe(task))
		_ = bar.Set(int(task.Progress))

		switch task.Status {
		case types.TaskStatusDone:
			_ = bar.Finish()
			size := "unknown size"
			if info, err := app.Artifacts.Stat(task.Filename); err == nil {
				size = humanize.Bytes(uint64(info.Size()))
			}
			fmt.Fprintf(out, "Saved %q to %s (%s)\n", task.Title, task.Filename, size)
			return task, nil
		case types.TaskStatusError:
			_ = bar.Exit()
			return task, fmt.Errorf("download failed: %s", task.Error)
		}
	}
}

func describe(task types.Task) string {
	if task.Title == "" {
		return string(task.Status)
	}
	return fmt.Sprintf("%s %s", task.Status, task.Title)
}
