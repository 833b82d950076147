package relay_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guard-relay/relay-service/internal/clients"
	"guard-relay/relay-service/internal/display"
	"guard-relay/relay-service/internal/relay"
	"guard-relay/relay-service/internal/relay/mocks"
	"guard-relay/shared/database"
	interfaceMocks "guard-relay/shared/interfaces/mocks"
	"guard-relay/shared/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testOrigin = "https://guard.example"
	testTarget = "https://guard.example/"
)

var shownAt = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type fixture struct {
	relay        *relay.Relay
	registration *mocks.Registration
	clients      *mocks.Clients
	opener       *mocks.WindowOpener
	store        *database.MemoryNotificationStore
	journal      *interfaceMocks.DeliveryJournal
}

func newFixture(t *testing.T, withOpener bool) *fixture {
	t.Helper()
	f := &fixture{
		registration: new(mocks.Registration),
		clients:      new(mocks.Clients),
		store:        database.NewMemoryNotificationStore(time.Hour),
	}
	var opener relay.WindowOpener
	if withOpener {
		f.opener = new(mocks.WindowOpener)
		opener = f.opener
	}
	r, err := relay.New(f.registration, f.clients, opener, f.store, nil, relay.DefaultOptions(testOrigin), zap.NewNop())
	require.NoError(t, err)
	r.SetClock(func() string { return "n-1" }, func() time.Time { return shownAt })
	f.relay = r
	return f
}

func newJournalFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		registration: new(mocks.Registration),
		clients:      new(mocks.Clients),
		opener:       new(mocks.WindowOpener),
		store:        database.NewMemoryNotificationStore(time.Hour),
		journal:      interfaceMocks.NewDeliveryJournal(t),
	}
	r, err := relay.New(f.registration, f.clients, f.opener, f.store, f.journal, relay.DefaultOptions(testOrigin), zap.NewNop())
	require.NoError(t, err)
	r.SetClock(func() string { return "n-1" }, func() time.Time { return shownAt })
	f.relay = r
	return f
}

func windowQuery(userID uuid.UUID) models.ClientQuery {
	return models.ClientQuery{UserID: userID, Type: models.ClientTypeWindow, IncludeUncontrolled: true}
}

func TestNew_Validation(t *testing.T) {
	store := database.NewMemoryNotificationStore(0)

	_, err := relay.New(nil, new(mocks.Clients), nil, store, nil, relay.DefaultOptions(testOrigin), zap.NewNop())
	assert.Error(t, err)

	_, err = relay.New(new(mocks.Registration), new(mocks.Clients), nil, store, nil, relay.DefaultOptions("not a url"), zap.NewNop())
	assert.Error(t, err)
}

func TestResolveTargetURL(t *testing.T) {
	tests := []struct {
		origin, path, want string
		wantErr            bool
	}{
		{origin: "https://guard.example", path: "/", want: "https://guard.example/"},
		{origin: "https://guard.example/app/page", path: "/", want: "https://guard.example/"},
		{origin: "http://localhost:8080", path: "", want: "http://localhost:8080/"},
		{origin: "https://guard.example", path: "/alarms?tab=open", want: "https://guard.example/alarms?tab=open"},
		{origin: "guard.example", path: "/", wantErr: true},
		{origin: "", path: "/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.origin+tt.path, func(t *testing.T) {
			got, err := relay.ResolveTargetURL(tt.origin, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDisplayText(t *testing.T) {
	const fbTitle, fbBody = "Guard Bildirimi", "Yeni bir bildirim var."
	tests := []struct {
		name      string
		payload   models.PushPayload
		wantTitle string
		wantBody  string
	}{
		{"empty payload", models.PushPayload{}, fbTitle, fbBody},
		{"title and body", models.PushPayload{Notification: &models.PushNotification{Title: "Alert", Body: "Check now"}}, "Alert", "Check now"},
		{"title only", models.PushPayload{Notification: &models.PushNotification{Title: "Alert"}}, "Alert", fbBody},
		{"body only", models.PushPayload{Notification: &models.PushNotification{Body: "Check now"}}, fbTitle, "Check now"},
		{"empty strings", models.PushPayload{Notification: &models.PushNotification{}}, fbTitle, fbBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body := relay.DisplayText(tt.payload, fbTitle, fbBody)
			assert.Equal(t, tt.wantTitle, title)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestHandleBackgroundMessage(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	t.Run("shows notification with payload text and data", func(t *testing.T) {
		f := newFixture(t, true)
		data := map[string]any{"alarmId": "42", "nested": map[string]any{"zone": 3}}
		wantOpts := models.NotificationOptions{
			Tag:   "n-1",
			Body:  "Check now",
			Icon:  "/icons/Icon-192.png",
			Badge: "/icons/Icon-192.png",
			Data:  data,
		}
		f.registration.On("ShowNotification", mock.Anything, models.Recipient{UserID: userID}, "Alert", wantOpts).Return(nil).Once()

		err := f.relay.HandleBackgroundMessage(ctx, models.PushPayload{
			UserID:       userID,
			Notification: &models.PushNotification{Title: "Alert", Body: "Check now"},
			Data:         data,
		})

		require.NoError(t, err)
		f.registration.AssertExpectations(t)

		stored, err := f.store.Get(ctx, "n-1")
		require.NoError(t, err)
		assert.Equal(t, userID, stored.UserID)
		assert.Equal(t, "Alert", stored.Title)
		assert.Equal(t, data, stored.Options.Data)
		assert.Equal(t, shownAt, stored.ShownAt)
	})

	t.Run("empty payload uses fallbacks", func(t *testing.T) {
		f := newFixture(t, true)
		f.registration.On("ShowNotification", mock.Anything, models.Recipient{}, "Guard Bildirimi",
			mock.MatchedBy(func(o models.NotificationOptions) bool {
				return o.Body == "Yeni bir bildirim var." && o.Data == nil && o.Icon == "/icons/Icon-192.png"
			})).Return(nil).Once()

		require.NoError(t, f.relay.HandleBackgroundMessage(ctx, models.PushPayload{}))
		f.registration.AssertExpectations(t)
	})

	t.Run("image and explicit tokens are forwarded", func(t *testing.T) {
		f := newFixture(t, true)
		to := models.Recipient{DeviceTokens: []string{"tok-1"}}
		f.registration.On("ShowNotification", mock.Anything, to, "Alert",
			mock.MatchedBy(func(o models.NotificationOptions) bool { return o.Image == "https://cdn.example/a.png" })).Return(nil).Once()

		require.NoError(t, f.relay.HandleBackgroundMessage(ctx, models.PushPayload{
			DeviceTokens: []string{"tok-1"},
			Notification: &models.PushNotification{Title: "Alert", Image: "https://cdn.example/a.png"},
		}))
		f.registration.AssertExpectations(t)
	})

	t.Run("display failure is returned", func(t *testing.T) {
		f := newFixture(t, true)
		displayErr := errors.New("permission denied")
		f.registration.On("ShowNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(displayErr).Once()

		err := f.relay.HandleBackgroundMessage(ctx, models.PushPayload{})

		assert.ErrorIs(t, err, displayErr)
		assert.ErrorIs(t, err, models.ErrDisplayFailed)
		f.registration.AssertNumberOfCalls(t, "ShowNotification", 1)
	})

	t.Run("journal records shown notification", func(t *testing.T) {
		f := newJournalFixture(t)
		f.registration.On("ShowNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		f.journal.On("RecordShown", mock.Anything, mock.MatchedBy(func(n models.ShownNotification) bool {
			return n.ID == "n-1" && n.Title == "Alert"
		})).Return(errors.New("db down")).Once()

		assert.NoError(t, f.relay.HandleBackgroundMessage(ctx, models.PushPayload{Notification: &models.PushNotification{Title: "Alert"}}))
	})
}

func TestHandleNotificationClick(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	show := func(t *testing.T, f *fixture) {
		t.Helper()
		f.registration.On("ShowNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
		require.NoError(t, f.relay.HandleBackgroundMessage(ctx, models.PushPayload{
			UserID:       userID,
			Notification: &models.PushNotification{Title: "Alert", Body: "Check now"},
			Data:         map[string]any{"alarmId": "42"},
		}))
	}

	t.Run("focuses matching window", func(t *testing.T) {
		f := newFixture(t, true)
		show(t, f)
		other := &mocks.Window{ClientID: "c-0", ClientURL: "https://guard.example/settings"}
		match := &mocks.Window{ClientID: "c-1", ClientURL: testTarget}
		match.On("Focus", mock.Anything).Return(nil).Once()
		f.registration.On("CloseNotification", mock.Anything, models.Recipient{UserID: userID}, "n-1").Return(nil).Once()
		f.clients.On("MatchAll", mock.Anything, windowQuery(userID)).Return([]relay.Client{other, match}, nil).Once()

		res, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1"})

		require.NoError(t, err)
		assert.Equal(t, models.ClickOutcomeFocused, res.Outcome)
		assert.Equal(t, "c-1", res.ClientID)
		assert.Equal(t, testTarget, res.URL)
		assert.Equal(t, map[string]any{"alarmId": "42"}, res.Data)
		match.AssertExpectations(t)
		other.AssertNotCalled(t, "Focus", mock.Anything)
		f.opener.AssertNotCalled(t, "OpenWindow", mock.Anything, mock.Anything, mock.Anything)
		f.registration.AssertExpectations(t)

		_, err = f.store.Get(ctx, "n-1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("only the first matching window is focused", func(t *testing.T) {
		f := newFixture(t, true)
		first := &mocks.Window{ClientID: "c-1", ClientURL: testTarget}
		second := &mocks.Window{ClientID: "c-2", ClientURL: testTarget}
		first.On("Focus", mock.Anything).Return(nil).Once()
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.clients.On("MatchAll", mock.Anything, mock.Anything).Return([]relay.Client{first, second}, nil).Once()

		res, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1", UserID: userID})

		require.NoError(t, err)
		assert.Equal(t, "c-1", res.ClientID)
		second.AssertNotCalled(t, "Focus", mock.Anything)
	})

	t.Run("opens window when nothing matches", func(t *testing.T) {
		f := newFixture(t, true)
		show(t, f)
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, "n-1").Return(nil).Once()
		f.clients.On("MatchAll", mock.Anything, windowQuery(userID)).
			Return([]relay.Client{&mocks.Window{ClientID: "c-0", ClientURL: "https://guard.example"}}, nil).Once()
		opened := &mocks.PassiveWindow{ClientID: "new", ClientURL: testTarget}
		f.opener.On("OpenWindow", mock.Anything, userID, testTarget).Return(opened, nil).Once()

		res, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1"})

		require.NoError(t, err)
		assert.Equal(t, models.ClickOutcomeOpened, res.Outcome)
		assert.Equal(t, "new", res.ClientID)
		f.opener.AssertExpectations(t)
	})

	t.Run("non-focusable match is skipped", func(t *testing.T) {
		f := newFixture(t, true)
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.clients.On("MatchAll", mock.Anything, mock.Anything).
			Return([]relay.Client{&mocks.PassiveWindow{ClientID: "p", ClientURL: testTarget}}, nil).Once()
		f.opener.On("OpenWindow", mock.Anything, userID, testTarget).Return(nil, nil).Once()

		res, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1", UserID: userID})

		require.NoError(t, err)
		assert.Equal(t, models.ClickOutcomeOpened, res.Outcome)
		assert.Empty(t, res.ClientID)
	})

	t.Run("no opener means no action", func(t *testing.T) {
		f := newFixture(t, false)
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.clients.On("MatchAll", mock.Anything, mock.Anything).Return(nil, nil).Once()

		res, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1", UserID: userID})

		require.NoError(t, err)
		assert.Equal(t, models.ClickOutcomeNone, res.Outcome)
		assert.Equal(t, testTarget, res.URL)
	})

	t.Run("unknown notification still routes", func(t *testing.T) {
		f := newFixture(t, true)
		f.registration.On("CloseNotification", mock.Anything, models.Recipient{UserID: userID}, "gone").Return(errors.New("not shown")).Once()
		f.clients.On("MatchAll", mock.Anything, windowQuery(userID)).Return(nil, nil).Once()
		f.opener.On("OpenWindow", mock.Anything, userID, testTarget).Return(nil, nil).Once()

		res, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "gone", UserID: userID})

		require.NoError(t, err)
		assert.Equal(t, models.ClickOutcomeOpened, res.Outcome)
		assert.Nil(t, res.Data)
	})

	t.Run("focus failure is returned", func(t *testing.T) {
		f := newFixture(t, true)
		focusErr := errors.New("window gone")
		w := &mocks.Window{ClientID: "c-1", ClientURL: testTarget}
		w.On("Focus", mock.Anything).Return(focusErr).Once()
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.clients.On("MatchAll", mock.Anything, mock.Anything).Return([]relay.Client{w}, nil).Once()

		_, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1", UserID: userID})

		assert.ErrorIs(t, err, focusErr)
		f.opener.AssertNotCalled(t, "OpenWindow", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("enumeration failure is returned", func(t *testing.T) {
		f := newFixture(t, true)
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.clients.On("MatchAll", mock.Anything, mock.Anything).Return(nil, errors.New("registry closed")).Once()

		_, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1", UserID: userID})
		assert.Error(t, err)
	})

	t.Run("journal records click", func(t *testing.T) {
		f := newJournalFixture(t)
		f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		f.clients.On("MatchAll", mock.Anything, mock.Anything).Return(nil, nil).Once()
		f.opener.On("OpenWindow", mock.Anything, userID, testTarget).Return(nil, nil).Once()
		event := models.ClickEvent{NotificationID: "n-1", UserID: userID, Action: "open"}
		f.journal.On("RecordClick", mock.Anything, event, mock.MatchedBy(func(r models.ClickResult) bool {
			return r.Outcome == models.ClickOutcomeOpened
		})).Return(nil).Once()

		_, err := f.relay.HandleNotificationClick(ctx, event)
		require.NoError(t, err)
	})
}

func TestHandleNotificationClick_PendingWork(t *testing.T) {
	userID := uuid.New()
	f := newFixture(t, true)
	release := make(chan struct{})
	focused := make(chan struct{})
	w := &mocks.Window{ClientID: "c-1", ClientURL: testTarget}
	w.On("Focus", mock.Anything).Run(func(args mock.Arguments) {
		close(focused)
		<-release
	}).Return(nil).Once()
	f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.clients.On("MatchAll", mock.Anything, mock.Anything).Return([]relay.Client{w}, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := f.relay.HandleNotificationClick(ctx, models.ClickEvent{NotificationID: "n-1", UserID: userID})
		errCh <- err
	}()

	<-focused
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	// Продолжение еще выполняется: Wait не должен вернуться раньше.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer waitCancel()
	assert.ErrorIs(t, f.relay.Wait(waitCtx), context.DeadlineExceeded)

	close(release)
	require.NoError(t, f.relay.Wait(context.Background()))
	w.AssertExpectations(t)
}

func TestHandleNotificationClick_NoConnectedWindows(t *testing.T) {
	ctx := context.Background()
	logger := zap.NewNop()
	registry := clients.NewRegistry(logger)
	journal := interfaceMocks.NewDeliveryJournal(t)
	r, err := relay.New(display.NewMulti(logger, registry), registry, registry,
		database.NewMemoryNotificationStore(time.Hour), journal, relay.DefaultOptions(testOrigin), logger)
	require.NoError(t, err)

	event := models.ClickEvent{NotificationID: "n-1", UserID: uuid.New()}
	journal.On("RecordClick", mock.Anything, event, mock.MatchedBy(func(res models.ClickResult) bool {
		return res.Outcome == models.ClickOutcomeOpenRequested
	})).Return(nil).Once()

	res, err := r.HandleNotificationClick(ctx, event)

	require.NoError(t, err)
	assert.Equal(t, models.ClickOutcomeOpenRequested, res.Outcome)
	assert.Equal(t, testTarget, res.URL)
	assert.Empty(t, res.ClientID)
}

func TestWait_ConcurrentClicks(t *testing.T) {
	f := newFixture(t, false)
	f.registration.On("CloseNotification", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	f.clients.On("MatchAll", mock.Anything, mock.Anything).Return(nil, nil).Maybe()

	const workers = 4
	var wg sync.WaitGroup
	started := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; ; n++ {
				_, err := f.relay.HandleNotificationClick(context.Background(), models.ClickEvent{NotificationID: "n-1", UserID: uuid.New()})
				if n == 0 {
					started <- struct{}{}
				}
				if errors.Is(err, models.ErrShuttingDown) {
					return
				}
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < workers; i++ {
		<-started
	}

	require.NoError(t, f.relay.Wait(context.Background()))
	wg.Wait()
	require.NoError(t, f.relay.Wait(context.Background()))

	_, err := f.relay.HandleNotificationClick(context.Background(), models.ClickEvent{NotificationID: "n-2"})
	assert.ErrorIs(t, err, models.ErrShuttingDown)
}
