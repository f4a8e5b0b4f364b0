package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type fakeRepo struct {
	lastSearch string
	lastLimit  int
	err        error
	deleted    []uuid.UUID
}

func (f *fakeRepo) Search(_ context.Context, search string, limit int) ([]Summary, error) {
	f.lastSearch, f.lastLimit = search, limit
	return []Summary{}, f.err
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func TestSearchLimit(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"unset", 0, DefaultSearchLimit},
		{"negative", -5, DefaultSearchLimit},
		{"within bounds", 10, 10},
		{"capped", MaxSearchLimit + 1, MaxSearchLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &fakeRepo{}
			svc := NewService(repo, zerolog.Nop())

			if _, err := svc.Search(context.Background(), "dupont", tt.limit); err != nil {
				t.Fatalf("search: %v", err)
			}
			if repo.lastLimit != tt.want || repo.lastSearch != "dupont" {
				t.Errorf("got search %q limit %d, want limit %d", repo.lastSearch, repo.lastLimit, tt.want)
			}
		})
	}
}

func TestDeleteErrors(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
		want    error
	}{
		{"not found", ErrPatientNotFound, ErrPatientNotFound},
		{"has bookings", ErrPatientHasBookings, ErrPatientHasBookings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(&fakeRepo{err: tt.repoErr}, zerolog.Nop())
			if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	repo := &fakeRepo{}
	id := uuid.New()
	if err := NewService(repo, zerolog.Nop()).Delete(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != id {
		t.Errorf("expected %s deleted, got %v", id, repo.deleted)
	}
}

func TestEscapeLike(t *testing.T) {
	if got := escapeLike(`50%_off\`); got != `50\%\_off\\` {
		t.Errorf("got %q", got)
	}
}
