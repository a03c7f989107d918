package service

import (
	"sync/atomic"
	"time"

	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	log "github.com/sirupsen/logrus"
)

const taskPollInterval = time.Second * 5

// taskLoop polls for work on a ticker or on wake up, and drains the queue while process reports more work.
type taskLoop struct {
	name    string
	process func() bool
	wakeC   chan struct{}
	running atomic.Bool
}

func newTaskLoop(name string, process func() bool) *taskLoop {
	return &taskLoop{name: name, process: process, wakeC: make(chan struct{}, 1)}
}

func (l *taskLoop) start() {
	utils.SafeAsync(func() {
		ticker := time.NewTicker(taskPollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
			case <-l.wakeC:
			}
			l.run()
		}
	})
}

func (l *taskLoop) wake() {
	select {
	case l.wakeC <- struct{}{}:
	default:
	}
}

func (l *taskLoop) run() {
	if !l.running.CompareAndSwap(false, true) {
		log.Tracef("%s: tick skipped, running", l.name)
		return
	}
	utils.SafeAsync(func() {
		defer l.running.Store(false)
		for l.process() {
			log.Tracef("%s: keep on running", l.name)
		}
	})
}

// keepAlive calls touch on every interval until the returned stop function is called.
// stop returns only after a touch in flight has finished, so no touch runs after it.
func keepAlive(interval time.Duration, touch func()) func() {
	stopC := make(chan struct{})
	doneC := make(chan struct{})
	utils.SafeAsync(func() {
		defer close(doneC)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stopC:
				return
			case <-t.C:
				touch()
			}
		}
	})
	return func() {
		close(stopC)
		<-doneC
	}
}
