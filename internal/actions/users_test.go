package actions

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/muni-incidencias/backend/internal/backend"
	"github.com/muni-incidencias/backend/internal/models"
)

const userID = "9d8c7b6a-5e4f-4d3c-b2a1-0f9e8d7c6b5a"

type fakeAdmin struct {
	mu sync.Mutex

	CreateErr error
	UpdateErr error
	DeleteErr error

	CreatedEmails []string
	UpdatedIDs    []string
	DeletedIDs    []string
}

func (f *fakeAdmin) CreateUser(ctx context.Context, email, password string, metadata map[string]string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return "", f.CreateErr
	}
	f.CreatedEmails = append(f.CreatedEmails, email)
	return userID, nil
}

func (f *fakeAdmin) UpdateUserMetadata(ctx context.Context, id string, metadata map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return f.UpdateErr
	}
	f.UpdatedIDs = append(f.UpdatedIDs, id)
	return nil
}

func (f *fakeAdmin) DeleteUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	f.DeletedIDs = append(f.DeletedIDs, id)
	return nil
}

func userForm(email, password, role, status string) url.Values {
	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	form.Set("role", role)
	form.Set("status", status)
	return form
}

func TestCreateUser_NormalizesEmail(t *testing.T) {
	mem := &backend.Memory{}
	admin := &fakeAdmin{}
	svc := New(mem, admin, nil, nil, nil, zerolog.Nop())

	form := userForm("  Soporte@Muni.GOB.pe ", "segura-123", models.RoleOperador, models.UserActivo)
	res := svc.CreateUser(context.Background(), form)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(admin.CreatedEmails) != 1 || admin.CreatedEmails[0] != "soporte@muni.gob.pe" {
		t.Fatalf("expected lowercased trimmed email, got %v", admin.CreatedEmails)
	}
	if len(mem.Users) != 1 || mem.Users[0].Username != "soporte@muni.gob.pe" {
		t.Fatalf("expected mirrored profile, got %+v", mem.Users)
	}
}

func TestCreateUser_IdentityFailureSkipsProfile(t *testing.T) {
	mem := &backend.Memory{}
	admin := &fakeAdmin{CreateErr: errors.New("boom")}
	svc := New(mem, admin, nil, nil, nil, zerolog.Nop())

	res := svc.CreateUser(context.Background(), userForm("a@b.pe", "segura-123", models.RoleOperador, models.UserActivo))
	if res.OK {
		t.Fatalf("expected failure")
	}
	if mem.UpsertCalls != 0 {
		t.Fatalf("expected no profile write, got %d", mem.UpsertCalls)
	}
}

func TestCreateUser_ProfileFailureEnqueuesRepair(t *testing.T) {
	mem := &backend.Memory{WriteErr: errors.New("profile down")}
	admin := &fakeAdmin{}
	rec := NewReconciler(zerolog.Nop(), 4)
	svc := New(mem, admin, nil, nil, rec, zerolog.Nop())

	res := svc.CreateUser(context.Background(), userForm("a@b.pe", "segura-123", models.RoleAdministrador, models.UserActivo))
	if res.OK {
		t.Fatalf("expected partial-failure result")
	}
	if !strings.Contains(res.Message, "se reintentara") {
		t.Fatalf("expected distinguishable partial-failure message, got %q", res.Message)
	}
	if len(rec.jobs) != 1 {
		t.Fatalf("expected 1 queued repair job, got %d", len(rec.jobs))
	}
}

func TestReconciler_RetriesThenSucceeds(t *testing.T) {
	rec := &Reconciler{
		jobs:    make(chan Job, 1),
		logger:  zerolog.Nop(),
		retries: 3,
		backoff: time.Millisecond,
		done:    make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx)

	var mu sync.Mutex
	attempts := 0
	ran := make(chan struct{})
	rec.Enqueue(Job{
		Name: "retry-then-ok",
		Run: func(ctx context.Context) error {
			mu.Lock()
			defer mu.Unlock()
			attempts++
			if attempts < 2 {
				return errors.New("transient")
			}
			close(ran)
			return nil
		},
	})

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatalf("job never succeeded")
	}
}

func TestReconciler_CompensatesAfterExhaustedRetries(t *testing.T) {
	rec := &Reconciler{
		jobs:    make(chan Job, 1),
		logger:  zerolog.Nop(),
		retries: 2,
		backoff: time.Millisecond,
		done:    make(chan struct{}),
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rec.Start(ctx)

	compensated := make(chan struct{})
	rec.Enqueue(Job{
		Name: "always-fails",
		Run: func(ctx context.Context) error {
			return errors.New("permanent")
		},
		Compensate: func(ctx context.Context) error {
			close(compensated)
			return nil
		},
	})

	select {
	case <-compensated:
	case <-time.After(2 * time.Second):
		t.Fatalf("compensation never ran")
	}
}

func TestUpdateUser_ProfileFailureEnqueuesRepair(t *testing.T) {
	mem := &backend.Memory{WriteErr: errors.New("profile down")}
	admin := &fakeAdmin{}
	rec := NewReconciler(zerolog.Nop(), 4)
	svc := New(mem, admin, nil, nil, rec, zerolog.Nop())

	form := url.Values{}
	form.Set("user_id", userID)
	form.Set("role", models.RoleOperador)
	form.Set("status", models.UserInactivo)

	res := svc.UpdateUser(context.Background(), form)
	if res.OK {
		t.Fatalf("expected partial-failure result")
	}
	if len(admin.UpdatedIDs) != 1 {
		t.Fatalf("expected metadata update to have happened, got %v", admin.UpdatedIDs)
	}
	if len(rec.jobs) != 1 {
		t.Fatalf("expected 1 queued repair job, got %d", len(rec.jobs))
	}
}

func TestDeleteUser_RefusesSelf(t *testing.T) {
	mem := &backend.Memory{Users: []models.SystemUser{{ID: userID}}}
	admin := &fakeAdmin{}
	svc := New(mem, admin, nil, nil, nil, zerolog.Nop())

	form := url.Values{}
	form.Set("user_id", userID)

	res := svc.DeleteUser(context.Background(), userID, form)
	if res.OK {
		t.Fatalf("expected self-deletion refusal")
	}
	if res.Message != "No puedes eliminar tu propia cuenta." {
		t.Fatalf("unexpected message: %s", res.Message)
	}
	if len(admin.DeletedIDs) != 0 {
		t.Fatalf("expected no identity deletion, got %v", admin.DeletedIDs)
	}
}

func TestDeleteUser_RemovesIdentityAndProfile(t *testing.T) {
	mem := &backend.Memory{Users: []models.SystemUser{{ID: userID}}}
	admin := &fakeAdmin{}
	svc := New(mem, admin, nil, nil, nil, zerolog.Nop())

	form := url.Values{}
	form.Set("user_id", userID)

	res := svc.DeleteUser(context.Background(), "3c2b1a09-8f7e-4d6c-b5a4-392817161514", form)
	if !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if len(admin.DeletedIDs) != 1 || admin.DeletedIDs[0] != userID {
		t.Fatalf("expected identity deletion, got %v", admin.DeletedIDs)
	}
	if len(mem.Users) != 0 {
		t.Fatalf("expected profile removed, got %+v", mem.Users)
	}
}
