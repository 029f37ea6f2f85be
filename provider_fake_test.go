package authweb

import (
	"context"
	"sync"
	"time"
)

// fakeProvider is an in-memory IdentityProvider. Calls are counted per
// operation and may be held on a gate to simulate a slow network.
type fakeProvider struct {
	mu    sync.Mutex
	calls map[string]int

	user *User

	signInErr       error
	createErr       error
	resetErr        error
	verificationErr error
	profileErr      error

	// gate, when set, blocks every call until it is closed or the context ends.
	// followGate only blocks the profile update and the verification email.
	gate       chan struct{}
	followGate chan struct{}
	entered    chan string

	lastCreds   Credentials
	lastProfile ProfileUpdate
	lastEmail   string
	followUsers []*User
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		calls: map[string]int{},
		user:  &User{UID: "uid-1", Email: "jane@example.com", IDToken: "token-1"},
	}
}

func (f *fakeProvider) hit(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	gate, entered := f.gate, f.entered
	if gate == nil && (op == "profile" || op == "verify") {
		gate = f.followGate
	}
	f.mu.Unlock()

	if entered != nil {
		entered <- op
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeProvider) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeProvider) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func (f *fakeProvider) CreateAccount(ctx context.Context, creds Credentials) (*User, error) {
	if err := f.hit(ctx, "create"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreds = creds
	if f.createErr != nil {
		return nil, f.createErr
	}
	u := *f.user
	u.Email = creds.Email
	return &u, nil
}

func (f *fakeProvider) SignIn(ctx context.Context, creds Credentials) (*User, error) {
	if err := f.hit(ctx, "signin"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCreds = creds
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	u := *f.user
	return &u, nil
}

func (f *fakeProvider) SendPasswordReset(ctx context.Context, email string) error {
	if err := f.hit(ctx, "reset"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastEmail = email
	return f.resetErr
}

func (f *fakeProvider) SendEmailVerification(ctx context.Context, user *User) error {
	if err := f.hit(ctx, "verify"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.followUsers = append(f.followUsers, user)
	return f.verificationErr
}

func (f *fakeProvider) UpdateProfile(ctx context.Context, user *User, update ProfileUpdate) error {
	if err := f.hit(ctx, "profile"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastProfile = update
	f.followUsers = append(f.followUsers, user)
	return f.profileErr
}

// navSpy counts navigation requests.
type navSpy struct {
	NavigationRecorder
}

func (n *navSpy) last() (Navigation, bool) { return n.Pending() }

func fixedNow() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
