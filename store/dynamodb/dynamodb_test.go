package dynamodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/pkg/queueerrors"
)

// fakeTable is a minimal single-table stand-in for the DynamoDB API
// surface this backend uses, enough to exercise conditional PutItem
// semantics (attribute_not_exists and version-equality checks)
// without a real AWS account.
type fakeTable struct {
	mu    sync.Mutex
	items map[string]map[string]types.AttributeValue
}

func newFakeTable() *fakeTable {
	return &fakeTable{items: make(map[string]map[string]types.AttributeValue)}
}

func (f *fakeTable) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := in.Item["jobId"].(*types.AttributeValueMemberS).Value
	existing, exists := f.items[key]

	if in.ConditionExpression != nil {
		switch *in.ConditionExpression {
		case "attribute_not_exists(jobId)":
			if exists {
				return nil, &conditionalCheckFailed{}
			}
		case "version = :expected":
			expected := in.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberN).Value
			if !exists {
				return nil, &conditionalCheckFailed{}
			}
			got := existing["version"].(*types.AttributeValueMemberN).Value
			if got != expected {
				return nil, &conditionalCheckFailed{}
			}
		}
	}

	f.items[key] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeTable) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := in.Key["jobId"].(*types.AttributeValueMemberS).Value
	item, ok := f.items[key]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: item}, nil
}

func (f *fakeTable) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.items, in.Key["jobId"].(*types.AttributeValueMemberS).Value)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeTable) Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := &dynamodb.ScanOutput{}
	for _, item := range f.items {
		out.Items = append(out.Items, item)
	}
	return out, nil
}

func (f *fakeTable) DescribeTable(context.Context, *dynamodb.DescribeTableInput, ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{}, nil
}

type conditionalCheckFailed struct{}

func (e *conditionalCheckFailed) Error() string {
	return "ConditionalCheckFailedException: the conditional request failed"
}

func TestScheduleRejectsDuplicate(t *testing.T) {
	b := NewWithClient(newFakeTable(), "jobs", "", false)
	j := job.New(job.Routine{Kind: "nop"}, nil, job.Never())
	now := time.Now()

	if err := b.Schedule(j, now); err != nil {
		t.Fatalf("first Schedule failed: %v", err)
	}
	err := b.Schedule(j, now)
	if !queueerrors.Is(err, queueerrors.KindAlreadyExists) {
		t.Fatalf("expected KindAlreadyExists, got %v", err)
	}
}

func TestSetStatusValidatesTransition(t *testing.T) {
	b := NewWithClient(newFakeTable(), "jobs", "", false)
	j := job.New(job.Routine{Kind: "nop"}, nil, job.Never())
	now := time.Now()

	if err := b.Schedule(j, now); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	err := b.SetStatus(j.ID, job.StatusRunning, "", now)
	if !queueerrors.Is(err, queueerrors.KindIllegalTransition) {
		t.Fatalf("expected KindIllegalTransition for Pending->Running, got %v", err)
	}
}

// TestConcurrentMutationsBothApply exercises the race the dispatcher and
// pool worker goroutines can hit on the same job: SetStep (dispatcher)
// and SetStatus (worker) both read-modify-write the same item. Without
// the version-conditioned retry in mutate, one of the two updates would
// silently be lost.
func TestConcurrentMutationsBothApply(t *testing.T) {
	b := NewWithClient(newFakeTable(), "jobs", "", false)
	j := job.New(job.Routine{Kind: "nop"}, nil, job.Never())
	now := time.Now()

	if err := b.Schedule(j, now); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := b.SetStatus(j.ID, job.StatusReady, "", now); err != nil {
		t.Fatalf("SetStatus(Ready) failed: %v", err)
	}
	if err := b.SetStatus(j.ID, job.StatusRunning, "", now); err != nil {
		t.Fatalf("SetStatus(Running) failed: %v", err)
	}
	// SetStep clamps to Steps, so give the job room for step 3.
	if err := b.SetSteps(j.ID, 5); err != nil {
		t.Fatalf("SetSteps failed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		errs <- b.SetStep(j.ID, 3)
	}()
	go func() {
		defer wg.Done()
		errs <- b.SetStatus(j.ID, job.StatusFinished, job.ResultSuccess, now)
	}()
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent mutation failed: %v", err)
		}
	}

	status, err := b.Status(j.ID)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status != job.StatusFinished {
		t.Fatalf("expected Finished status to survive the concurrent SetStep, got %s", status)
	}
	progression, err := b.Progression(j.ID)
	if err != nil {
		t.Fatalf("Progression failed: %v", err)
	}
	if progression.Step != 3 {
		t.Fatalf("expected step 3 to survive the concurrent SetStatus, got %d", progression.Step)
	}
}

func TestResultRequiresFinishedSuccess(t *testing.T) {
	b := NewWithClient(newFakeTable(), "jobs", "", false)
	j := job.New(job.Routine{Kind: "nop"}, nil, job.Never())
	now := time.Now()

	if err := b.Schedule(j, now); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	_, err := b.Result(j.ID, now)
	if !queueerrors.Is(err, queueerrors.KindNotFinished) {
		t.Fatalf("expected KindNotFinished, got %v", err)
	}
}

func TestRemoveRejectsRunningJob(t *testing.T) {
	b := NewWithClient(newFakeTable(), "jobs", "", false)
	j := job.New(job.Routine{Kind: "nop"}, nil, job.Never())
	now := time.Now()

	if err := b.Schedule(j, now); err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if err := b.SetStatus(j.ID, job.StatusReady, "", now); err != nil {
		t.Fatalf("SetStatus(Ready) failed: %v", err)
	}
	if err := b.SetStatus(j.ID, job.StatusRunning, "", now); err != nil {
		t.Fatalf("SetStatus(Running) failed: %v", err)
	}
	if err := b.Remove(j.ID); !queueerrors.Is(err, queueerrors.KindBusy) {
		t.Fatalf("expected KindBusy removing a running job, got %v", err)
	}
}
