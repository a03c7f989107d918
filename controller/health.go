package controller

import (
	"net/http"
	"sync/atomic"
)

type HealthController interface {
	HandleReadyRequest(w http.ResponseWriter, r *http.Request)
	HandleLiveRequest(w http.ResponseWriter, r *http.Request)
}

// NewHealthController reports ready once a value is received from readyChan.
func NewHealthController(readyChan chan bool) HealthController {
	c := &healthControllerImpl{}
	go func() {
		for ready := range readyChan {
			c.ready.Store(ready)
		}
	}()
	return c
}

type healthControllerImpl struct {
	ready atomic.Bool
}

func (h *healthControllerImpl) HandleReadyRequest(w http.ResponseWriter, r *http.Request) {
	if h.ready.Load() {
		w.WriteHeader(http.StatusOK)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (h *healthControllerImpl) HandleLiveRequest(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
