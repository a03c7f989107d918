package service

import (
	"encoding/json"
	"sync"

	"github.com/Netcracker/qubership-bid-evaluation-service/client"
	"github.com/Netcracker/qubership-bid-evaluation-service/utils"
	"github.com/buraksezer/olric"
	log "github.com/sirupsen/logrus"
)

// TaskEventListener spreads "new work" notifications between service instances,
// so task processors don't wait for the next tick.
type TaskEventListener interface {
	Start()
	Notify(event TaskEvent)
	Subscribe(f func(event TaskEvent))
	listen(message olric.DTopicMessage)
}

type TaskEvent struct {
	ProjectId int64  `json:"project_id"`
	Kind      string `json:"kind"`
}

const (
	TaskEventProjectCreated = "project_created"
	TaskEventRulesReady     = "rules_ready"
)

const TaskEventsTopicName = "bid-evaluation-tasks"

func NewTaskEventListener(op client.OlricProvider) TaskEventListener {
	return &taskEventListenerImpl{
		op:        op,
		isReadyWg: sync.WaitGroup{},
	}
}

type taskEventListenerImpl struct {
	op          client.OlricProvider
	tasksTopic  *olric.DTopic
	isReadyWg   sync.WaitGroup
	mu          sync.RWMutex
	subscribers []func(event TaskEvent)
}

func (t *taskEventListenerImpl) Start() {
	t.isReadyWg.Add(1)
	utils.SafeAsync(func() {
		t.initTasksDTopic()
	})
}

func (t *taskEventListenerImpl) Subscribe(f func(event TaskEvent)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, f)
}

// Notify publishes the event to all instances. Local subscribers get it through the topic as well.
func (t *taskEventListenerImpl) Notify(event TaskEvent) {
	utils.SafeAsync(func() {
		t.isReadyWg.Wait()
		if t.tasksTopic == nil {
			t.deliver(event)
			return
		}
		data, err := json.Marshal(event)
		if err != nil {
			log.Errorf("TaskEventListener.Notify: failed to marshal event: %v", err)
			return
		}
		if err = t.tasksTopic.Publish(string(data)); err != nil {
			log.Errorf("TaskEventListener.Notify: failed to publish event %+v: %v", event, err)
			t.deliver(event)
		}
	})
}

func (t *taskEventListenerImpl) listen(message olric.DTopicMessage) {
	str, ok := message.Message.(string)
	if !ok {
		log.Warnf("TaskEventListener.listen: unexpected event %+v, will not be processed", message.Message)
		return
	}

	var event TaskEvent
	err := json.Unmarshal([]byte(str), &event)
	if err != nil {
		log.Errorf("TaskEventListener.listen: error unmarshalling task event: %v", err)
		return
	}
	t.deliver(event)
}

func (t *taskEventListenerImpl) deliver(event TaskEvent) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, f := range t.subscribers {
		f(event)
	}
}

func (t *taskEventListenerImpl) initTasksDTopic() {
	defer t.isReadyWg.Done()

	topic, err := t.op.Get().NewDTopic(TaskEventsTopicName, 10000, olric.UnorderedDelivery)
	if err != nil {
		log.Errorf("Failed to create DTopic %s: %s", TaskEventsTopicName, err.Error())
		return
	}

	_, err = topic.AddListener(t.listen)
	if err != nil {
		log.Errorf("Failed to add listener to DTopic %s: %s", TaskEventsTopicName, err.Error())
		return
	}
	t.tasksTopic = topic
}
