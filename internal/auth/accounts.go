package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"classtrack/internal/store"
)

var (
	// ErrEmailTaken means registration used an already-registered email.
	ErrEmailTaken = errors.New("this email is already registered")
	// ErrInvalidCredentials covers unknown email and wrong password alike.
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Profile is a teacher's stored account record, minus the password hash.
type Profile struct {
	UID        string `json:"uid"`
	FirstName  string `json:"firstName"`
	MiddleName string `json:"middleName"`
	LastName   string `json:"lastName"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	CreatedAt  string `json:"createdAt"`
}

// Accounts manages teacher registration and sign-in against the document
// store's users collection.
type Accounts struct {
	docs     store.Documents
	notifier *Notifier
}

// NewAccounts builds the service; notifier may be nil when auth-state
// broadcasting is not wanted (tests).
func NewAccounts(docs store.Documents, notifier *Notifier) *Accounts {
	return &Accounts{docs: docs, notifier: notifier}
}

// Register creates a teacher account with a bcrypt-hashed password and a
// profile document. The document id becomes the teacher's uid.
func (a *Accounts) Register(ctx context.Context, firstName, middleName, lastName, email, password string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" || firstName == "" || lastName == "" {
		return Profile{}, errors.New("first name, last name, email and password are required")
	}

	existing, err := a.docs.Query(ctx, store.CollectionUsers,
		[]store.Filter{{Field: "email", Value: email}}, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		return Profile{}, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return Profile{}, fmt.Errorf("hash password: %w", err)
	}

	fullName := firstName + " "
	if middleName != "" {
		fullName += middleName + " "
	}
	fullName += lastName

	profile := Profile{
		FirstName:  firstName,
		MiddleName: middleName,
		LastName:   lastName,
		FullName:   fullName,
		Email:      email,
		Role:       "teacher",
		CreatedAt:  time.Now().UTC().Format(time.RFC3339),
	}
	uid, err := a.docs.Create(ctx, store.CollectionUsers, map[string]any{
		"firstName":     profile.FirstName,
		"middleName":    profile.MiddleName,
		"lastName":      profile.LastName,
		"fullName":      profile.FullName,
		"email":         profile.Email,
		"role":          profile.Role,
		"createdAt":     profile.CreatedAt,
		"passwordHash":  string(hash),
		"emailVerified": false,
	})
	if err != nil {
		return Profile{}, fmt.Errorf("create user: %w", err)
	}
	profile.UID = uid
	return profile, nil
}

// Authenticate checks email and password and, on success, broadcasts the
// signed-in event and returns the profile.
func (a *Accounts) Authenticate(ctx context.Context, email, password string) (Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	docs, err := a.docs.Query(ctx, store.CollectionUsers,
		[]store.Filter{{Field: "email", Value: email}}, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("look up user: %w", err)
	}
	if len(docs) == 0 {
		return Profile{}, ErrInvalidCredentials
	}
	doc := docs[0]
	if bcrypt.CompareHashAndPassword([]byte(doc.String("passwordHash")), []byte(password)) != nil {
		return Profile{}, ErrInvalidCredentials
	}

	profile := profileFromDocument(doc)
	if a.notifier != nil {
		a.notifier.SignedIn(Session{
			UserID:        profile.UID,
			Email:         profile.Email,
			EmailVerified: doc.Fields["emailVerified"] == true,
		})
	}
	return profile, nil
}

// Profile loads a teacher's account record by uid.
func (a *Accounts) Profile(ctx context.Context, uid string) (Profile, error) {
	doc, err := a.docs.Get(ctx, store.CollectionUsers, uid)
	if err != nil {
		return Profile{}, err
	}
	return profileFromDocument(doc), nil
}

func profileFromDocument(doc store.Document) Profile {
	return Profile{
		UID:        doc.ID,
		FirstName:  doc.String("firstName"),
		MiddleName: doc.String("middleName"),
		LastName:   doc.String("lastName"),
		FullName:   doc.String("fullName"),
		Email:      doc.String("email"),
		Role:       doc.String("role"),
		CreatedAt:  doc.String("createdAt"),
	}
}
