package results

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"atbat/internal/prediction"
	"atbat/internal/session"
	"atbat/internal/types"
)

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*sqs.SendMessageOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

const queueURL = "https://sqs.us-east-1.amazonaws.com/123456789012/atbat-results"

func resolvedSession(t *testing.T) *session.Session {
	t.Helper()
	now := time.Date(2026, 4, 1, 19, 5, 0, 0, time.UTC)
	s := session.New("sess-1", now)
	s.ScenarioIndex = 3
	require.NoError(t, s.Resolve(types.OutcomeHit, 0.8,
		types.Swing{LaunchSpeed: 104, LaunchAngle: 28, Bearing: types.BearingLeft}, now))
	return s
}

func TestRecordResolution_Publishes(t *testing.T) {
	client := new(mockSQS)
	pub := NewPublisher(client, queueURL, nil)

	var input *sqs.SendMessageInput
	client.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { input = args.Get(1).(*sqs.SendMessageInput) }).
		Return(&sqs.SendMessageOutput{}, nil)

	ctx := types.WithRequestID(context.Background(), "req-7")
	pub.RecordResolution(ctx, resolvedSession(t), prediction.Result{
		HomeRun: true, Confidence: 0.8, Probabilities: []float64{0.2, 0.8},
	})

	require.NotNil(t, input)
	assert.Equal(t, queueURL, aws.ToString(input.QueueUrl))
	assert.Equal(t, "hit", aws.ToString(input.MessageAttributes["outcome"].StringValue))

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.MessageBody)), &msg))
	assert.NotEmpty(t, msg.MessageID)
	assert.Equal(t, "sess-1", msg.SessionID)
	assert.Equal(t, "req-7", msg.RequestID)
	assert.Equal(t, 3, msg.ScenarioIndex)
	assert.True(t, msg.HomeRun)
	assert.Equal(t, types.OutcomeHit, msg.Outcome)
	require.NotNil(t, msg.Swing)
	assert.Equal(t, types.BearingLeft, msg.Swing.Bearing)
	client.AssertExpectations(t)
}

func TestRecordResolution_ErrorIsSwallowed(t *testing.T) {
	client := new(mockSQS)
	pub := NewPublisher(client, queueURL, nil)
	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	assert.NotPanics(t, func() {
		pub.RecordResolution(context.Background(), resolvedSession(t), prediction.Result{})
	})
	client.AssertNumberOfCalls(t, "SendMessage", 1)
}

func TestRecordResolution_SurvivesCanceledRequest(t *testing.T) {
	client := new(mockSQS)
	pub := NewPublisher(client, queueURL, nil)
	client.On("SendMessage", mock.MatchedBy(func(ctx context.Context) bool {
		return ctx.Err() == nil
	}), mock.Anything).Return(&sqs.SendMessageOutput{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pub.RecordResolution(ctx, resolvedSession(t), prediction.Result{})
	client.AssertExpectations(t)
}

func TestPublish_Error(t *testing.T) {
	client := new(mockSQS)
	pub := NewPublisher(client, queueURL, nil)
	client.On("SendMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	err := pub.Publish(context.Background(), Message{SessionID: "s"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), queueURL)
}
