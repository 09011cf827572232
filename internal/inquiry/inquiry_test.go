package inquiry

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/viscend/internal/kv"
	"github.com/olegiv/viscend/internal/notify"
	"github.com/olegiv/viscend/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return n.err
}

type failingStore struct{ kv.MemoryStore }

func (*failingStore) Set(context.Context, string, any) error { return errors.New("disk full") }

var fixedNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestService(store kv.Store, n notify.Notifier) *Service {
	return NewService(Options{
		Store:    store,
		Notifier: n,
		Logger:   testutil.TestLoggerSilent(),
		MailTo:   []string{"studio@example.com"},
		Now:      func() time.Time { return fixedNow },
	})
}

func TestSubmitContact(t *testing.T) {
	store := kv.NewMemoryStore()
	n := &recordingNotifier{}
	svc := newTestService(store, n)

	c, err := svc.SubmitContact(context.Background(), ContactInput{
		Name:    "Ada",
		Email:   "ada@example.com",
		Message: "We need a 3D product film.",
	})
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^contact_1741944413000_[a-z0-9]{9}$`), c.ID)
	assert.Equal(t, NotSpecified, c.ProjectType)
	assert.Equal(t, NotSpecified, c.BudgetRange)
	assert.Equal(t, "2025-03-14T09:26:53Z", c.SubmittedAt)

	var stored Contact
	require.NoError(t, store.Get(context.Background(), c.ID, &stored))
	assert.Equal(t, *c, stored)

	require.Len(t, n.msgs, 1)
	assert.Equal(t, "New Project Inquiry from Ada", n.msgs[0].Subject)
	assert.Equal(t, DefaultMailFrom, n.msgs[0].From)
	assert.Equal(t, []string{"studio@example.com"}, n.msgs[0].To)
	assert.Contains(t, n.msgs[0].HTML, "We need a 3D product film.")
}

func TestSubmitContact_KeepsOptionalFields(t *testing.T) {
	svc := newTestService(kv.NewMemoryStore(), &recordingNotifier{})

	c, err := svc.SubmitContact(context.Background(), ContactInput{
		Name:        "Ada",
		Email:       "ada@example.com",
		ProjectType: "Visual Effects",
		BudgetRange: "$15,000 - $50,000",
		Message:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "Visual Effects", c.ProjectType)
	assert.Equal(t, "$15,000 - $50,000", c.BudgetRange)
}

func TestSubmitContact_Validation(t *testing.T) {
	tests := []struct {
		name    string
		in      ContactInput
		message string
		fields  []string
	}{
		{"missing name", ContactInput{Email: "a@b.co", Message: "m"}, "Missing required fields", []string{"name"}},
		{"blank message", ContactInput{Name: "n", Email: "a@b.co", Message: "   "}, "Missing required fields", []string{"message"}},
		{"all missing", ContactInput{}, "Missing required fields", []string{"name", "email", "message"}},
		{"bad email", ContactInput{Name: "n", Email: "not-an-email", Message: "m"}, "Invalid email address", []string{"email"}},
		{"display name email", ContactInput{Name: "n", Email: "Ada <a@b.co>", Message: "m"}, "Invalid email address", []string{"email"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := kv.NewMemoryStore()
			n := &recordingNotifier{}
			svc := newTestService(store, n)

			_, err := svc.SubmitContact(context.Background(), tt.in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.message, verr.Message)
			assert.Equal(t, tt.fields, verr.Fields)

			assert.Equal(t, 0, store.Len(), "nothing persisted")
			assert.Empty(t, n.msgs, "nothing sent")
		})
	}
}

func TestSubmitContact_NotifierFailureIsSwallowed(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := newTestService(store, &recordingNotifier{err: errors.New("provider down")})

	c, err := svc.SubmitContact(context.Background(), ContactInput{Name: "n", Email: "a@b.co", Message: "m"})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Len())
	assert.NotEmpty(t, c.ID)
}

func TestSubmitContact_StoreFailure(t *testing.T) {
	n := &recordingNotifier{}
	svc := newTestService(&failingStore{}, n)

	_, err := svc.SubmitContact(context.Background(), ContactInput{Name: "n", Email: "a@b.co", Message: "m"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, n.msgs, "no notification without a stored record")
}

func TestSubscribe(t *testing.T) {
	store := kv.NewMemoryStore()
	n := &recordingNotifier{}
	svc := newTestService(store, n)

	sub, err := svc.Subscribe(context.Background(), " fan@example.com ")
	require.NoError(t, err)
	assert.Regexp(t, `^newsletter_1741944413000_[a-z0-9]{9}$`, sub.ID)
	assert.Equal(t, "fan@example.com", sub.Email)

	require.Len(t, n.msgs, 1)
	assert.Equal(t, "New Newsletter Subscription", n.msgs[0].Subject)

	subs, err := svc.ListSubscriptions(context.Background())
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.ID, subs[0].ID)
}

func TestSubscribe_Validation(t *testing.T) {
	svc := newTestService(kv.NewMemoryStore(), &recordingNotifier{})

	_, err := svc.Subscribe(context.Background(), "")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Email is required", verr.Message)

	_, err = svc.Subscribe(context.Background(), "nope")
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Invalid email address", verr.Message)
}

func TestListContacts_OnlyContacts(t *testing.T) {
	store := kv.NewMemoryStore()
	svc := newTestService(store, &recordingNotifier{})
	ctx := context.Background()

	empty, err := svc.ListContacts(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.SubmitContact(ctx, ContactInput{Name: "a", Email: "a@b.co", Message: "m"})
	require.NoError(t, err)
	_, err = svc.SubmitContact(ctx, ContactInput{Name: "b", Email: "b@b.co", Message: "m"})
	require.NoError(t, err)
	_, err = svc.Subscribe(ctx, "c@b.co")
	require.NoError(t, err)

	contacts, err := svc.ListContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, contacts, 2)

	out, err := json.Marshal(contacts[0])
	require.NoError(t, err)
	assert.Contains(t, string(out), `"submittedAt"`)
	assert.Contains(t, string(out), `"projectType"`)
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{Message: "Missing required fields", Fields: []string{"name", "email"}}
	assert.Equal(t, "Missing required fields: name, email", err.Error())
}
