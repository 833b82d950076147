package display

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"guard-relay/shared/constants"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"github.com/sideshow/apns2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBuildAPNSPayload(t *testing.T) {
	opts := models.NotificationOptions{Tag: "n-1", Body: "Check now", Data: map[string]any{"alarmId": "42"}}

	raw, err := json.Marshal(buildAPNSPayload("Alert", opts, "https://guard.example/"))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	aps := got["aps"].(map[string]any)
	alert := aps["alert"].(map[string]any)
	assert.Equal(t, "Alert", alert["title"])
	assert.Equal(t, "Check now", alert["body"])
	assert.Equal(t, "n-1", aps["thread-id"])
	assert.Equal(t, "42", got["alarmId"])
	assert.Equal(t, "n-1", got[constants.PushNotificationIDKey])
	assert.Equal(t, "https://guard.example/", got[constants.PushClickURLKey])
}

func TestAPNSHost_Show(t *testing.T) {
	ctx := context.Background()
	opts := models.NotificationOptions{Tag: "n-1", Body: "Check now"}
	provider := &fakeTokenProvider{tokens: []models.DeviceTokenInfo{
		{Token: "ios-1", Platform: constants.PlatformIOS},
		{Token: "ios-2", Platform: constants.PlatformIOS},
		{Token: "web-1", Platform: constants.PlatformWeb},
	}}

	t.Run("sends to ios tokens only", func(t *testing.T) {
		var mu sync.Mutex
		var sent []string
		push := func(ctx context.Context, n *apns2.Notification) (*apns2.Response, error) {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, n.DeviceToken)
			assert.Equal(t, "com.guard.app", n.Topic)
			assert.Equal(t, "n-1", n.CollapseID)
			return &apns2.Response{StatusCode: http.StatusOK}, nil
		}
		h := newAPNSHost(push, "com.guard.app", "", provider, nil, zap.NewNop())

		require.NoError(t, h.Show(ctx, models.Recipient{UserID: uuid.New()}, "Alert", opts))
		assert.ElementsMatch(t, []string{"ios-1", "ios-2"}, sent)
	})

	t.Run("explicit tokens are ignored", func(t *testing.T) {
		push := func(ctx context.Context, n *apns2.Notification) (*apns2.Response, error) {
			t.Fatal("unexpected push")
			return nil, nil
		}
		h := newAPNSHost(push, "com.guard.app", "", provider, nil, zap.NewNop())

		assert.NoError(t, h.Show(ctx, models.Recipient{UserID: uuid.New(), DeviceTokens: []string{"fcm-token"}}, "Alert", opts))
	})

	t.Run("unregistered token is reported", func(t *testing.T) {
		push := func(ctx context.Context, n *apns2.Notification) (*apns2.Response, error) {
			if n.DeviceToken == "ios-1" {
				return &apns2.Response{StatusCode: http.StatusGone, Reason: apns2.ReasonUnregistered}, nil
			}
			return &apns2.Response{StatusCode: http.StatusOK}, nil
		}
		sink := &recordingSink{}
		h := newAPNSHost(push, "com.guard.app", "", provider, sink, zap.NewNop())

		require.NoError(t, h.Show(ctx, models.Recipient{UserID: uuid.New()}, "Alert", opts))
		assert.Equal(t, []string{"ios-1"}, sink.tokens)
	})

	t.Run("every token failing is an error", func(t *testing.T) {
		push := func(ctx context.Context, n *apns2.Notification) (*apns2.Response, error) {
			return nil, errors.New("connection reset")
		}
		h := newAPNSHost(push, "com.guard.app", "", provider, nil, zap.NewNop())

		assert.Error(t, h.Show(ctx, models.Recipient{UserID: uuid.New()}, "Alert", opts))
	})
}

func TestIsInvalidAPNSReason(t *testing.T) {
	assert.True(t, isInvalidAPNSReason(apns2.ReasonBadDeviceToken))
	assert.True(t, isInvalidAPNSReason(apns2.ReasonDeviceTokenNotForTopic))
	assert.False(t, isInvalidAPNSReason(apns2.ReasonTooManyRequests))
}
