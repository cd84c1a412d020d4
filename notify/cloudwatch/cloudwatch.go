// Package cloudwatch is an optional notification sink that mirrors
// every queue Notification into a CloudWatch Logs stream as a JSON
// line, alongside whatever in-process Handler the caller registered.
package cloudwatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/ehsaniara/jobqueue/notify"
)

// Config configures the log group/stream this sink writes to.
type Config struct {
	Region          string
	LogGroupName    string
	LogStreamPrefix string
}

// Sink forwards notifications to CloudWatch Logs. It is safe for
// concurrent use: the dispatcher and every pool worker may call it.
type Sink struct {
	client    *cloudwatchlogs.Client
	logGroup  string
	logStream string

	mu            sync.Mutex
	sequenceToken *string
	ensured       bool
}

// New connects to CloudWatch Logs using the default AWS credential
// chain and prepares the destination log group/stream.
func New(ctx context.Context, cfg Config) (*Sink, error) {
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

	logGroup := cfg.LogGroupName
	if logGroup == "" {
		logGroup = "/jobqueue/notifications"
	}
	streamPrefix := cfg.LogStreamPrefix
	if streamPrefix == "" {
		streamPrefix = "queue-"
	}

	return &Sink{
		client:    cloudwatchlogs.NewFromConfig(awsCfg),
		logGroup:  logGroup,
		logStream: streamPrefix + time.Now().UTC().Format("20060102T150405Z"),
	}, nil
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

type event struct {
	Kind         string `json:"kind"`
	JobID        string `json:"jobId,omitempty"`
	Status       string `json:"status,omitempty"`
	ResultStatus string `json:"resultStatus,omitempty"`
	Step         uint64 `json:"step,omitempty"`
	Steps        uint64 `json:"steps,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Handler adapts Sink into a notify.Handler. Failures to reach
// CloudWatch are swallowed: a notification sink must never make the
// dispatcher's control thread block or panic on a transient AWS
// outage.
func (s *Sink) Handler() notify.Handler {
	return func(n notify.Notification) {
		_ = s.send(n)
	}
}

func (s *Sink) send(n notify.Notification) error {
	ev := event{JobID: string(n.JobID)}
	switch n.Kind {
	case notify.KindError:
		ev.Kind = "error"
		if n.Err != nil {
			ev.Error = n.Err.Error()
		}
	case notify.KindStatus:
		ev.Kind = "status"
		ev.Status = string(n.Status)
		ev.ResultStatus = string(n.ResultStatus)
	case notify.KindProgression:
		ev.Kind = "progression"
		ev.Step = n.Progression.Step
		ev.Steps = n.Progression.Steps
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx := context.Background()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ensured {
		if err := s.ensureDestination(ctx); err != nil {
			return err
		}
		s.ensured = true
	}

	input := &cloudwatchlogs.PutLogEventsInput{
		LogGroupName:  aws.String(s.logGroup),
		LogStreamName: aws.String(s.logStream),
		LogEvents: []types.InputLogEvent{{
			Message:   aws.String(string(payload)),
			Timestamp: aws.Int64(time.Now().UnixMilli()),
		}},
		SequenceToken: s.sequenceToken,
	}

	resp, err := s.client.PutLogEvents(ctx, input)
	if err != nil {
		return fmt.Errorf("put log events: %w", err)
	}
	s.sequenceToken = resp.NextSequenceToken
	return nil
}

func (s *Sink) ensureDestination(ctx context.Context) error {
	_, err := s.client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(s.logGroup),
	})
	if err != nil && !strings.Contains(err.Error(), "ResourceAlreadyExistsException") {
		return fmt.Errorf("create log group: %w", err)
	}

	_, err = s.client.CreateLogStream(ctx, &cloudwatchlogs.CreateLogStreamInput{
		LogGroupName:  aws.String(s.logGroup),
		LogStreamName: aws.String(s.logStream),
	})
	if err != nil && !strings.Contains(err.Error(), "ResourceAlreadyExistsException") {
		return fmt.Errorf("create log stream: %w", err)
	}

	return nil
}
