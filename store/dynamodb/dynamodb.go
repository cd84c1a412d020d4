// Package dynamodb is an optional Backend adapter that stores job
// records in a DynamoDB table instead of the default in-memory map.
// It is grounded on the same item-shape conventions as the rest of
// the AWS-backed adapters in this module, trading the in-memory
// sweeper for DynamoDB's own TTL-based item expiry.
package dynamodb

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/ehsaniara/jobqueue/job"
	"github.com/ehsaniara/jobqueue/pkg/queueerrors"
	"github.com/ehsaniara/jobqueue/routine"
)

// API is the subset of the DynamoDB client this backend calls,
// narrowed so tests can substitute a fake without pulling in the full
// SDK client surface.
type API interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Config configures the table this backend reads and writes.
type Config struct {
	Region     string
	TableName  string
	TTLAttr    string
	TTLEnabled bool
}

// Backend stores job records as single-item rows keyed by jobId,
// relying on DynamoDB's TTL sweep for Timeout/OnResultFetch expiry
// instead of an in-process ticker.
type Backend struct {
	client    API
	tableName string
	ttlAttr   string
	ttlOn     bool
}

// New connects to DynamoDB using the default AWS credential chain
// and verifies the configured table is reachable.
func New(ctx context.Context, cfg Config) (*Backend, error) {
	region := cfg.Region
	if region == "" {
		if detected, err := detectRegion(ctx); err == nil {
			region = detected
		}
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS configuration: %w", err)
	}

	ttlAttr := cfg.TTLAttr
	if ttlAttr == "" {
		ttlAttr = "expiresAt"
	}

	b := &Backend{
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.TableName,
		ttlAttr:   ttlAttr,
		ttlOn:     cfg.TTLEnabled,
	}

	if _, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(b.tableName)}); err != nil {
		return nil, fmt.Errorf("table %s not accessible: %w", b.tableName, err)
	}

	return b, nil
}

// NewWithClient builds a Backend around an already-constructed client,
// for tests that substitute a fake implementing API.
func NewWithClient(client API, tableName string, ttlAttr string, ttlOn bool) *Backend {
	if ttlAttr == "" {
		ttlAttr = "expiresAt"
	}
	return &Backend{client: client, tableName: tableName, ttlAttr: ttlAttr, ttlOn: ttlOn}
}

func detectRegion(ctx context.Context) (string, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return "", err
	}
	resp, err := imds.NewFromConfig(cfg).GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", err
	}
	return resp.Region, nil
}

type item struct {
	ID              string
	Status          string
	ResultStatus    string
	Step            uint64
	Steps           uint64
	Result          []byte
	RoutineKind     string
	RoutineArgs     []byte
	PrivateData     []byte
	ExpireKind      int
	ExpireAfterNS   int64
	CreatedAt       time.Time
	ExpiresAt       time.Time
	ResultFetchedAt time.Time
	Version         int64
}

// maxPutAttempts bounds the optimistic-concurrency retry loop every
// read-modify-write method below runs: the dispatcher goroutine and a
// pool worker goroutine can both be mutating the same job's item
// concurrently (dispatcher via SetStep/SetSteps, worker via
// SetStatus/SetResult), so a plain GetItem-then-PutItem would let one
// overwrite the other's update.
const maxPutAttempts = 10

func (b *Backend) toAttrs(it item) map[string]types.AttributeValue {
	attrs := map[string]types.AttributeValue{
		"jobId":         &types.AttributeValueMemberS{Value: it.ID},
		"status":        &types.AttributeValueMemberS{Value: it.Status},
		"resultStatus":  &types.AttributeValueMemberS{Value: it.ResultStatus},
		"step":          &types.AttributeValueMemberN{Value: strconv.FormatUint(it.Step, 10)},
		"steps":         &types.AttributeValueMemberN{Value: strconv.FormatUint(it.Steps, 10)},
		"routineKind":   &types.AttributeValueMemberS{Value: it.RoutineKind},
		"expireKind":    &types.AttributeValueMemberN{Value: strconv.Itoa(it.ExpireKind)},
		"expireAfterNs": &types.AttributeValueMemberN{Value: strconv.FormatInt(it.ExpireAfterNS, 10)},
		"createdAt":     &types.AttributeValueMemberS{Value: it.CreatedAt.Format(time.RFC3339Nano)},
		"version":       &types.AttributeValueMemberN{Value: strconv.FormatInt(it.Version, 10)},
	}
	if len(it.Result) > 0 {
		attrs["result"] = &types.AttributeValueMemberB{Value: it.Result}
	}
	if len(it.RoutineArgs) > 0 {
		attrs["routineArgs"] = &types.AttributeValueMemberB{Value: it.RoutineArgs}
	}
	if len(it.PrivateData) > 0 {
		attrs["privateData"] = &types.AttributeValueMemberB{Value: it.PrivateData}
	}
	if !it.ResultFetchedAt.IsZero() {
		attrs["resultFetchedAt"] = &types.AttributeValueMemberS{Value: it.ResultFetchedAt.Format(time.RFC3339Nano)}
	}
	if !it.ExpiresAt.IsZero() {
		attrs["expiresAtTime"] = &types.AttributeValueMemberS{Value: it.ExpiresAt.Format(time.RFC3339Nano)}
		if b.ttlOn {
			attrs[b.ttlAttr] = &types.AttributeValueMemberN{Value: strconv.FormatInt(it.ExpiresAt.Unix(), 10)}
		}
	}
	return attrs
}

func fromAttrs(attrs map[string]types.AttributeValue) item {
	var it item
	if v, ok := attrs["jobId"].(*types.AttributeValueMemberS); ok {
		it.ID = v.Value
	}
	if v, ok := attrs["status"].(*types.AttributeValueMemberS); ok {
		it.Status = v.Value
	}
	if v, ok := attrs["resultStatus"].(*types.AttributeValueMemberS); ok {
		it.ResultStatus = v.Value
	}
	if v, ok := attrs["step"].(*types.AttributeValueMemberN); ok {
		it.Step, _ = strconv.ParseUint(v.Value, 10, 64)
	}
	if v, ok := attrs["steps"].(*types.AttributeValueMemberN); ok {
		it.Steps, _ = strconv.ParseUint(v.Value, 10, 64)
	}
	if v, ok := attrs["result"].(*types.AttributeValueMemberB); ok {
		it.Result = v.Value
	}
	if v, ok := attrs["routineKind"].(*types.AttributeValueMemberS); ok {
		it.RoutineKind = v.Value
	}
	if v, ok := attrs["routineArgs"].(*types.AttributeValueMemberB); ok {
		it.RoutineArgs = v.Value
	}
	if v, ok := attrs["privateData"].(*types.AttributeValueMemberB); ok {
		it.PrivateData = v.Value
	}
	if v, ok := attrs["expireKind"].(*types.AttributeValueMemberN); ok {
		it.ExpireKind, _ = strconv.Atoi(v.Value)
	}
	if v, ok := attrs["expireAfterNs"].(*types.AttributeValueMemberN); ok {
		n, _ := strconv.ParseInt(v.Value, 10, 64)
		it.ExpireAfterNS = n
	}
	if v, ok := attrs["createdAt"].(*types.AttributeValueMemberS); ok {
		it.CreatedAt, _ = time.Parse(time.RFC3339Nano, v.Value)
	}
	if v, ok := attrs["expiresAtTime"].(*types.AttributeValueMemberS); ok {
		it.ExpiresAt, _ = time.Parse(time.RFC3339Nano, v.Value)
	}
	if v, ok := attrs["resultFetchedAt"].(*types.AttributeValueMemberS); ok {
		it.ResultFetchedAt, _ = time.Parse(time.RFC3339Nano, v.Value)
	}
	if v, ok := attrs["version"].(*types.AttributeValueMemberN); ok {
		it.Version, _ = strconv.ParseInt(v.Value, 10, 64)
	}
	return it
}

func (b *Backend) get(ctx context.Context, id job.ID) (item, error) {
	out, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(b.tableName),
		Key:       map[string]types.AttributeValue{"jobId": &types.AttributeValueMemberS{Value: string(id)}},
	})
	if err != nil {
		// A transport/throttling failure is not "the job doesn't exist";
		// tagging it KindUnknownJob would let a caller's errors.Is mistake
		// a transient AWS error for a real absence.
		return item{}, queueerrors.Wrap(queueerrors.KindCustom, "dynamodb GetItem", err)
	}
	if out.Item == nil {
		return item{}, queueerrors.New(queueerrors.KindUnknownJob, string(id))
	}
	return fromAttrs(out.Item), nil
}

// put writes it unconditionally, for callers (Result's fetch-time
// touch-up) that already hold a freshly read item and aren't racing
// another writer over the fields they're changing.
func (b *Backend) put(ctx context.Context, it item) error {
	it.Version++
	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      b.toAttrs(it),
	})
	if err != nil {
		return queueerrors.Wrap(queueerrors.KindCustom, "dynamodb PutItem", err)
	}
	return nil
}

// casPut writes it only if the stored version still matches the
// version it was read at, failing with KindAlreadyExists (reused here
// as "conflict, caller should retry") otherwise.
func (b *Backend) casPut(ctx context.Context, it item) error {
	expected := it.Version
	it.Version = expected + 1
	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(b.tableName),
		Item:                b.toAttrs(it),
		ConditionExpression: aws.String("version = :expected"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberN{Value: strconv.FormatInt(expected, 10)},
		},
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return queueerrors.New(queueerrors.KindAlreadyExists, "version conflict")
		}
		return queueerrors.Wrap(queueerrors.KindCustom, "dynamodb PutItem", err)
	}
	return nil
}

// mutate reads the current item, applies fn, and writes it back with
// casPut, retrying on a version conflict so a concurrent writer (the
// dispatcher goroutine and a pool worker goroutine both touch the same
// job's item) never silently loses the other's update.
func (b *Backend) mutate(ctx context.Context, id job.ID, fn func(*item) error) error {
	var err error
	for attempt := 0; attempt < maxPutAttempts; attempt++ {
		var it item
		it, err = b.get(ctx, id)
		if err != nil {
			return err
		}
		if err = fn(&it); err != nil {
			return err
		}
		err = b.casPut(ctx, it)
		if err == nil {
			return nil
		}
		if !queueerrors.Is(err, queueerrors.KindAlreadyExists) {
			return err
		}
	}
	return err
}

// Schedule admits j as a new item, failing if jobId already exists.
func (b *Backend) Schedule(j job.Job, now time.Time) error {
	ctx := context.Background()

	it := item{
		ID:            string(j.ID),
		Status:        string(job.StatusPending),
		RoutineKind:   j.Routine.Kind,
		RoutineArgs:   j.Routine.Args,
		PrivateData:   j.PrivateData,
		ExpireKind:    int(j.Expire.Kind),
		ExpireAfterNS: int64(j.Expire.After),
		CreatedAt:     now,
	}
	if j.Expire.Kind == job.ExpireTimeout {
		it.ExpiresAt = now.Add(j.Expire.After)
	}

	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(b.tableName),
		Item:                b.toAttrs(it),
		ConditionExpression: aws.String("attribute_not_exists(jobId)"),
	})
	if err != nil {
		if strings.Contains(err.Error(), "ConditionalCheckFailedException") {
			return queueerrors.New(queueerrors.KindAlreadyExists, string(j.ID))
		}
		return queueerrors.Wrap(queueerrors.KindCustom, "dynamodb PutItem", err)
	}
	return nil
}

// SetStatus reads, validates, and writes back the job's status,
// retrying the whole read-validate-write under mutate if a concurrent
// writer (the dispatcher's SetStep/SetSteps) changed the item first.
func (b *Backend) SetStatus(id job.ID, status job.Status, resultStatus job.ResultStatus, now time.Time) error {
	return b.mutate(context.Background(), id, func(it *item) error {
		if !job.CanTransition(job.Status(it.Status), status) {
			return queueerrors.New(queueerrors.KindIllegalTransition, it.Status+" -> "+string(status))
		}
		it.Status = string(status)
		if status == job.StatusFinished {
			it.ResultStatus = string(resultStatus)
		}
		return nil
	})
}

func (b *Backend) SetStep(id job.ID, step uint64) error {
	return b.mutate(context.Background(), id, func(it *item) error {
		it.Step = step
		if it.Step > it.Steps {
			it.Step = it.Steps
		}
		return nil
	})
}

func (b *Backend) SetSteps(id job.ID, steps uint64) error {
	return b.mutate(context.Background(), id, func(it *item) error {
		it.Steps = steps
		if it.Step > it.Steps {
			it.Step = it.Steps
		}
		return nil
	})
}

func (b *Backend) SetResult(id job.ID, result []byte) error {
	return b.mutate(context.Background(), id, func(it *item) error {
		it.Result = result
		return nil
	})
}

func (b *Backend) Result(id job.ID, now time.Time) ([]byte, error) {
	ctx := context.Background()
	it, err := b.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if it.Status != string(job.StatusFinished) || it.ResultStatus != string(job.ResultSuccess) {
		return nil, queueerrors.New(queueerrors.KindNotFinished, string(id))
	}
	if it.ResultFetchedAt.IsZero() {
		it.ResultFetchedAt = now
		if job.ExpireKind(it.ExpireKind) == job.ExpireOnResultFetch {
			it.ExpiresAt = now.Add(time.Duration(it.ExpireAfterNS))
		}
		if err := b.put(ctx, it); err != nil {
			return nil, err
		}
	}
	return it.Result, nil
}

func (b *Backend) Status(id job.ID) (job.Status, error) {
	it, err := b.get(context.Background(), id)
	if err != nil {
		return "", err
	}
	return job.Status(it.Status), nil
}

func (b *Backend) Progression(id job.ID) (job.Progression, error) {
	it, err := b.get(context.Background(), id)
	if err != nil {
		return job.Progression{}, err
	}
	return job.Progression{Step: it.Step, Steps: it.Steps}, nil
}

func (b *Backend) Routine(id job.ID) (job.Routine, error) {
	it, err := b.get(context.Background(), id)
	if err != nil {
		return job.Routine{}, err
	}
	return job.Routine{Kind: it.RoutineKind, Args: it.RoutineArgs}, nil
}

func (b *Backend) PrivateData(id job.ID) ([]byte, error) {
	it, err := b.get(context.Background(), id)
	if err != nil {
		return nil, err
	}
	return it.PrivateData, nil
}

func (b *Backend) Jobs() ([]job.Record, error) {
	ctx := context.Background()
	out, err := b.client.Scan(ctx, &dynamodb.ScanInput{TableName: aws.String(b.tableName)})
	if err != nil {
		return nil, queueerrors.Wrap(queueerrors.KindCustom, "dynamodb Scan", err)
	}

	records := make([]job.Record, 0, len(out.Items))
	for _, attrs := range out.Items {
		it := fromAttrs(attrs)
		records = append(records, itemToRecord(it))
	}
	return records, nil
}

func itemToRecord(it item) job.Record {
	return job.Record{
		Job: job.Job{
			ID:          job.ID(it.ID),
			Routine:     job.Routine{Kind: it.RoutineKind, Args: it.RoutineArgs},
			PrivateData: it.PrivateData,
			Expire:      job.ExpirePolicy{Kind: job.ExpireKind(it.ExpireKind), After: time.Duration(it.ExpireAfterNS)},
		},
		Status:          job.Status(it.Status),
		Progression:     job.Progression{Step: it.Step, Steps: it.Steps},
		Result:          it.Result,
		ResultStatus:    job.ResultStatus(it.ResultStatus),
		CreatedAt:       it.CreatedAt,
		ExpiresAt:       it.ExpiresAt,
		ResultFetchedAt: it.ResultFetchedAt,
	}
}

func (b *Backend) Remove(id job.ID) error {
	ctx := context.Background()
	it, err := b.get(ctx, id)
	if err != nil {
		return err
	}
	if it.Status == string(job.StatusReady) || it.Status == string(job.StatusRunning) {
		return queueerrors.New(queueerrors.KindBusy, string(id))
	}

	_, err = b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.tableName),
		Key:       map[string]types.AttributeValue{"jobId": &types.AttributeValueMemberS{Value: string(id)}},
	})
	if err != nil {
		return queueerrors.Wrap(queueerrors.KindCustom, "dynamodb DeleteItem", err)
	}
	return nil
}

func (b *Backend) Run(rctx context.Context, id job.ID, reg *routine.Registry, userCtx any, sender routine.Sender) ([]byte, error) {
	it, err := b.get(context.Background(), id)
	if err != nil {
		return nil, err
	}

	fn, ok := reg.Lookup(it.RoutineKind)
	if !ok {
		return nil, queueerrors.Custom(fmt.Errorf("no routine registered for kind %s", it.RoutineKind))
	}

	j := job.Job{ID: id, Routine: job.Routine{Kind: it.RoutineKind, Args: it.RoutineArgs}, PrivateData: it.PrivateData}
	return fn(rctx, j, sender, userCtx)
}

// Sweep is a no-op: DynamoDB's own TTL sweep reclaims expired items
// in the background once the ttlAttr column is populated.
func (b *Backend) Sweep(time.Time) int { return 0 }

func (b *Backend) Close() error { return nil }
