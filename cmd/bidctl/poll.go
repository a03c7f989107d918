package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/view"
	log "github.com/sirupsen/logrus"
)

// waitForCompletion polls the project status until it is terminal or ctx is done.
// Not found and transient errors do not stop polling.
func waitForCompletion(ctx context.Context, cl client.EvaluationClient, projectId int64, interval time.Duration, out io.Writer) (*view.AnalysisStatus, error) {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	lastProgress := ""
	for {
		status, err := cl.GetAnalysisStatus(ctx, projectId)
		switch {
		case err == nil:
			if status.ProjectStatus.IsTerminal() {
				return status, nil
			}
			if p := progressLine(status); p != lastProgress {
				fmt.Fprintln(out, p)
				lastProgress = p
			}
		case errors.Is(err, client.ErrNotFound):
			log.Debugf("Status of project %d is not available yet", projectId)
		case ctx.Err() != nil:
			return nil, ctx.Err()
		default:
			log.Warnf("Failed to get status of project %d: %s", projectId, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func progressLine(status *view.AnalysisStatus) string {
	completed, total := 0, 0
	for _, b := range status.Bids {
		completed += b.ProgressCompleted
		total += b.ProgressTotal
	}
	return fmt.Sprintf("%s: %d/%d criteria scored", status.ProjectStatus, completed, total)
}
