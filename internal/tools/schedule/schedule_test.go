package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/joaolucaswork/esp32-concierge/pkg/models"
)

type stubScheduler struct {
	jobs    []models.ScheduledJob
	nextID  uint64
	created string
	err     error
}

func (s *stubScheduler) Create(ctx context.Context, trigger, action string) (*models.ScheduledJob, error) {
	if s.err != nil {
		return nil, s.err
	}
	job := models.ScheduledJob{ID: s.nextID, TriggerSpec: trigger, Action: action, Kind: models.JobOnce, NextFireEpoch: 123}
	s.jobs = append(s.jobs, job)
	s.nextID++
	s.created = action
	return &job, nil
}

func (s *stubScheduler) Delete(ctx context.Context, id uint64) error {
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("not found")
}

func (s *stubScheduler) List() []models.ScheduledJob { return s.jobs }

func TestScheduleCreateAndList(t *testing.T) {
	sched := &stubScheduler{}
	create := &CreateTool{Scheduler: sched}
	result, err := create.Execute(context.Background(), json.RawMessage(`{"trigger":"once in 5 minutes","action":"water plants"}`))
	if err != nil || result.IsError {
		t.Fatalf("create: %v %+v", err, result)
	}
	if sched.created != "water plants" {
		t.Fatalf("scheduler did not receive action text")
	}

	list := &ListTool{Scheduler: sched}
	listResult, _ := list.Execute(context.Background(), json.RawMessage(`{}`))
	if listResult.IsError {
		t.Fatalf("list returned error: %s", listResult.Content)
	}
}

func TestScheduleDelete(t *testing.T) {
	sched := &stubScheduler{jobs: []models.ScheduledJob{{ID: 7}}}
	del := &DeleteTool{Scheduler: sched}
	result, err := del.Execute(context.Background(), json.RawMessage(`{"id":7}`))
	if err != nil || result.IsError {
		t.Fatalf("delete: %v %+v", err, result)
	}
	if len(sched.jobs) != 0 {
		t.Fatalf("expected job removed")
	}
}

func TestScheduleDeleteUnknownID(t *testing.T) {
	sched := &stubScheduler{}
	del := &DeleteTool{Scheduler: sched}
	result, _ := del.Execute(context.Background(), json.RawMessage(`{"id":99}`))
	if !result.IsError {
		t.Fatalf("expected error deleting unknown id")
	}
}
