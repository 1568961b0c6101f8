package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"flagstore/internal/model"
	"flagstore/internal/repository"
	"flagstore/pkg/logger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func init() {
	logger.InitLogger("test")
}

func newTestService(t *testing.T) (*FlagService, repository.FlagInterface) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.ConfigFlag{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	repo := repository.NewFlagRepository(db)
	return NewFlagService(db, repo, nil), repo
}

func TestSetThenGet(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, value := range []bool{true, false} {
		name := fmt.Sprintf("flag_%v", value)
		if _, err := svc.Set(ctx, name, value); err != nil {
			t.Fatalf("Set(%s, %v) failed: %v", name, value, err)
		}

		got, err := svc.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", name, err)
		}
		if got == nil {
			t.Fatalf("Get(%s) returned absence after Set", name)
		}
		if got.Value != value {
			t.Errorf("Get(%s).Value = %v, want %v", name, got.Value, value)
		}
	}
}

func TestSetIdempotentInValue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Set(ctx, "idem", true)
	if err != nil {
		t.Fatalf("first Set failed: %v", err)
	}
	second, err := svc.Set(ctx, "idem", true)
	if err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	if !second.Value {
		t.Error("value flipped on idempotent Set")
	}
	// every Set is a "last observed write", so the timestamp still advances
	if second.UpdatedAt.Before(first.UpdatedAt) {
		t.Errorf("updated_at regressed: %v -> %v", first.UpdatedAt, second.UpdatedAt)
	}
}

func TestGetAbsentIsNotFalse(t *testing.T) {
	svc, _ := newTestService(t)

	got, err := svc.Get(context.Background(), "never_written")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get on unset flag = %+v, want nil (absence, not a zero-valued row)", got)
	}
}

func TestDeleteIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	deleted, err := svc.Delete(ctx, "ghost")
	if err != nil {
		t.Fatalf("Delete on absent flag failed: %v", err)
	}
	if deleted {
		t.Error("Delete on absent flag reported true")
	}

	if _, err := svc.Set(ctx, "ghost", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	deleted, err = svc.Delete(ctx, "ghost")
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if !deleted {
		t.Error("Delete on present flag reported false")
	}

	got, err := svc.Get(ctx, "ghost")
	if err != nil {
		t.Fatalf("Get after Delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get after Delete = %+v, want nil", got)
	}
}

func TestListSortedByName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if _, err := svc.Set(ctx, name, true); err != nil {
			t.Fatalf("Set(%s) failed: %v", name, err)
		}
	}
	// a repeated Set must not produce a duplicate row
	if _, err := svc.Set(ctx, "alpha", false); err != nil {
		t.Fatalf("repeated Set failed: %v", err)
	}

	flags, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(flags) != 3 {
		t.Fatalf("List returned %d flags, want 3", len(flags))
	}

	want := []string{"alpha", "mid", "zeta"}
	for i, f := range flags {
		if f.FlagName != want[i] {
			t.Errorf("List[%d] = %s, want %s", i, f.FlagName, want[i])
		}
	}
	if flags[0].Value {
		t.Error("alpha should have been flipped to false by the second Set")
	}
}

func TestValidateFlagName(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		wantErr bool
	}{
		{"empty", "", true},
		{"leading space", " beta", true},
		{"trailing space", "beta ", true},
		{"control character", "beta\nsearch", true},
		{"too long", strings.Repeat("x", 256), true},
		{"max length", strings.Repeat("x", 255), false},
		{"plain", "beta_search", false},
		{"mixed case", "BetaSearch", false},
		{"inner space", "beta search", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFlagName(tt.flag)
			if tt.wantErr && !errors.Is(err, ErrInvalidFlagName) {
				t.Errorf("ValidateFlagName(%q) = %v, want ErrInvalidFlagName", tt.flag, err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ValidateFlagName(%q) = %v, want nil", tt.flag, err)
			}
		})
	}
}

func TestValidationHappensBeforeStorage(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Set(ctx, "", true); !errors.Is(err, ErrInvalidFlagName) {
		t.Errorf("Set with empty name = %v, want ErrInvalidFlagName", err)
	}
	if _, err := svc.Get(ctx, ""); !errors.Is(err, ErrInvalidFlagName) {
		t.Errorf("Get with empty name = %v, want ErrInvalidFlagName", err)
	}
	if _, err := svc.Delete(ctx, ""); !errors.Is(err, ErrInvalidFlagName) {
		t.Errorf("Delete with empty name = %v, want ErrInvalidFlagName", err)
	}

	flags, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(flags) != 0 {
		t.Errorf("malformed names reached the table: %+v", flags)
	}
}

func TestNamesAreCaseSensitive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Set(ctx, "Feature", true); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, err := svc.Set(ctx, "feature", false); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	flags, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(flags) != 2 {
		t.Fatalf("case-sensitive names collapsed: got %d rows, want 2", len(flags))
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Create(ctx, "only_once", true); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := svc.Create(ctx, "only_once", false); !errors.Is(err, ErrFlagExists) {
		t.Errorf("duplicate Create = %v, want ErrFlagExists", err)
	}

	// the failed create must not have touched the row
	got, err := svc.Get(ctx, "only_once")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || !got.Value {
		t.Errorf("row changed by failed Create: %+v", got)
	}
}

func TestUpdatedAtNeverRegresses(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	// seed a row stamped in the future, as if written by a peer with a
	// faster clock
	future := time.Now().UTC().Add(1 * time.Hour)
	if err := repo.Upsert(ctx, &model.ConfigFlag{FlagName: "skewed", Value: true, UpdatedAt: future}); err != nil {
		t.Fatalf("seed Upsert failed: %v", err)
	}

	got, err := svc.Set(ctx, "skewed", false)
	if err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if got.UpdatedAt.Before(future) {
		t.Errorf("updated_at moved backwards: %v < %v", got.UpdatedAt, future)
	}
	if got.Value {
		t.Error("value was not updated")
	}
}

func TestBetaSearchScenario(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	enabled, err := svc.Set(ctx, "beta_search", true)
	if err != nil {
		t.Fatalf("Set(beta_search, true) failed: %v", err)
	}
	got, err := svc.Get(ctx, "beta_search")
	if err != nil || got == nil || !got.Value {
		t.Fatalf("Get after enable = (%+v, %v), want value=true", got, err)
	}

	disabled, err := svc.Set(ctx, "beta_search", false)
	if err != nil {
		t.Fatalf("Set(beta_search, false) failed: %v", err)
	}
	if disabled.Value {
		t.Error("flag still enabled after disable")
	}
	if disabled.UpdatedAt.Before(enabled.UpdatedAt) {
		t.Errorf("disable did not advance updated_at: %v < %v", disabled.UpdatedAt, enabled.UpdatedAt)
	}

	deleted, err := svc.Delete(ctx, "beta_search")
	if err != nil || !deleted {
		t.Fatalf("Delete = (%v, %v), want (true, nil)", deleted, err)
	}

	got, err = svc.Get(ctx, "beta_search")
	if err != nil {
		t.Fatalf("Get after Delete failed: %v", err)
	}
	if got != nil {
		t.Errorf("Get after Delete = %+v, want nil", got)
	}

	flags, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	for _, f := range flags {
		if f.FlagName == "beta_search" {
			t.Error("beta_search still present in listing after Delete")
		}
	}
}

func TestHealth(t *testing.T) {
	svc, _ := newTestService(t)

	if err := svc.Health(context.Background()); err != nil {
		t.Errorf("Health on live database = %v, want nil", err)
	}
}
