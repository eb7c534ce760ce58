package store

import (
	"context"
	"errors"
	"testing"

	"github.com/lennartp/chatstore/internal/repository/memory"
	"go.uber.org/zap"
)

func newTestDirectory(t *testing.T) *Directory {
	t.Helper()
	mem := memory.NewStore()
	return NewDirectory(mem, mem, zap.NewNop())
}

func TestRegisterAndLookup(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.RegisterUser(ctx, "smruthi096@gmail.com", "Smruthi", "K", "hash1"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	exists, err := dir.UserExists(ctx, "smruthi096@gmail.com")
	if err != nil || !exists {
		t.Fatalf("UserExists = %v, %v", exists, err)
	}

	rec, err := dir.GetUser(ctx, "smruthi096@gmail.com")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if rec.SafeEmail != "smruthi096-gmail-com" || rec.DisplayName() != "Smruthi K" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	hash, err := dir.Credentials(ctx, "smruthi096@gmail.com")
	if err != nil || hash != "hash1" {
		t.Fatalf("Credentials = %q, %v", hash, err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if err := dir.RegisterUser(ctx, "a@x.com", "Alice", "Adams", "h"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	err := dir.RegisterUser(ctx, "a@x.com", "Alice", "Adams", "h2")
	if !errors.Is(err, ErrWriteFailed) {
		t.Fatalf("expected ErrWriteFailed on duplicate, got %v", err)
	}
}

func TestListAllUsers(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.ListAllUsers(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty directory, got %v", err)
	}

	if err := dir.RegisterUser(ctx, "a@x.com", "Alice", "Adams", "h"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if err := dir.RegisterUser(ctx, "b@x.com", "Bob", "Jones", "h"); err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}

	entries, err := dir.ListAllUsers(ctx)
	if err != nil {
		t.Fatalf("ListAllUsers: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("directory length = %d, want 2", len(entries))
	}
	if entries[0].Email != "a-x-com" || entries[0].Name != "Alice Adams" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Email != "b-x-com" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestLookupUnknownUser(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	if _, err := dir.GetUser(ctx, "nobody@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := dir.Credentials(ctx, "nobody@x.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	exists, err := dir.UserExists(ctx, "nobody@x.com")
	if err != nil || exists {
		t.Fatalf("UserExists = %v, %v", exists, err)
	}
}
