package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classtrack/internal/store"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	docs := store.NewMemoryDocuments()
	notifier := NewNotifier()
	accounts := NewAccounts(docs, notifier)
	ctx := context.Background()

	var signedIn []Session
	unsubscribe := notifier.Subscribe(func(s Session, in bool) {
		if in {
			signedIn = append(signedIn, s)
		}
	})
	defer unsubscribe()

	profile, err := accounts.Register(ctx, "Jane", "", "Cruz", "Jane.Cruz@Example.com", "s3cret!")
	require.NoError(t, err)
	assert.NotEmpty(t, profile.UID)
	assert.Equal(t, "Jane Cruz", profile.FullName)
	assert.Equal(t, "teacher", profile.Role)
	assert.Equal(t, "jane.cruz@example.com", profile.Email)

	got, err := accounts.Authenticate(ctx, "jane.cruz@example.com", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, profile.UID, got.UID)

	// sign-in event carried the session
	require.Len(t, signedIn, 1)
	assert.Equal(t, profile.UID, signedIn[0].UserID)

	// stored profile never exposes the hash
	loaded, err := accounts.Profile(ctx, profile.UID)
	require.NoError(t, err)
	assert.Equal(t, "Jane", loaded.FirstName)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	accounts := NewAccounts(store.NewMemoryDocuments(), nil)
	ctx := context.Background()

	_, err := accounts.Register(ctx, "Jane", "", "Cruz", "jane@example.com", "s3cret!")
	require.NoError(t, err)
	_, err = accounts.Register(ctx, "Janet", "", "Cruz", "jane@example.com", "other")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestAuthenticateRejectsBadCredentials(t *testing.T) {
	accounts := NewAccounts(store.NewMemoryDocuments(), nil)
	ctx := context.Background()

	_, err := accounts.Register(ctx, "Jane", "", "Cruz", "jane@example.com", "s3cret!")
	require.NoError(t, err)

	_, err = accounts.Authenticate(ctx, "jane@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.Authenticate(ctx, "nobody@example.com", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestNotifierUnsubscribe(t *testing.T) {
	n := NewNotifier()
	calls := 0
	unsubscribe := n.Subscribe(func(Session, bool) { calls++ })

	n.SignedIn(Session{UserID: "T1"})
	assert.Equal(t, 1, calls)

	unsubscribe()
	n.SignedIn(Session{UserID: "T1"})
	n.SignedOut(Session{UserID: "T1"})
	assert.Equal(t, 1, calls)
}

func TestIssueAndParse(t *testing.T) {
	token, exp, err := Issue("T1", "jane@example.com", "classtrack", "test-key", time.Hour)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := Parse(token, "test-key", "classtrack")
	require.NoError(t, err)
	assert.Equal(t, "T1", claims.Subject)
	assert.Equal(t, "teacher", claims.Role)

	_, err = Parse(token, "wrong-key", "classtrack")
	assert.Error(t, err)
	_, err = Parse(token, "test-key", "other-issuer")
	assert.Error(t, err)
}
