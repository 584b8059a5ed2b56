package identity

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLookup(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+254700000000")
	ctx := context.Background()

	user, err := svc.Register(ctx, Registration{Phone: "+254711111111", FirstName: "Amina", LastName: "Otieno", Country: "Kenya"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.KYCStatus != KYCPending || user.Role != RoleUser || user.Country != CountryKenya {
		t.Fatalf("unexpected user %+v", user)
	}

	found, err := svc.Lookup(ctx, "+254711111111", "")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if found.ID != user.ID {
		t.Fatalf("expected %s got %s", user.ID, found.ID)
	}

	if _, err := svc.Lookup(ctx, "+254799999999", ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestRegisterAdminPhoneGetsAdminRole(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+254700000000")
	user, err := svc.Register(context.Background(), Registration{Phone: "+254700000000", FirstName: "Ops", LastName: "Desk", Country: "kenya"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if !user.IsAdmin() {
		t.Fatalf("expected admin role, got %s", user.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "")
	ctx := context.Background()

	cases := []struct {
		name string
		reg  Registration
		want error
	}{
		{"no contact", Registration{FirstName: "a", LastName: "b", Country: "kenya"}, ErrMissingContact},
		{"no names", Registration{Phone: "1", Country: "kenya"}, ErrMissingProfile},
		{"bad country", Registration{Phone: "1", FirstName: "a", LastName: "b", Country: "france"}, ErrInvalidCountry},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Register(ctx, tc.reg); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRegisterDuplicateContact(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "")
	ctx := context.Background()
	reg := Registration{Email: "a@example.com", FirstName: "a", LastName: "b", Country: "uganda"}
	if _, err := svc.Register(ctx, reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	reg.Email = "A@Example.com"
	if _, err := svc.Register(ctx, reg); !errors.Is(err, ErrUserExists) {
		t.Fatalf("expected user exists, got %v", err)
	}
}

func TestUpdateKYC(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "")
	ctx := context.Background()
	user, _ := svc.Register(ctx, Registration{Phone: "1", FirstName: "a", LastName: "b", Country: "tanzania"})

	if _, err := svc.UpdateKYC(ctx, user.ID, "maybe", ""); !errors.Is(err, ErrInvalidKYCStatus) {
		t.Fatalf("expected invalid status, got %v", err)
	}
	if _, err := svc.UpdateKYC(ctx, "missing", KYCApproved, ""); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	updated, err := svc.UpdateKYC(ctx, user.ID, KYCApproved, "documents ok")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.KYCStatus != KYCApproved || updated.KYCNotes != "documents ok" {
		t.Fatalf("unexpected user %+v", updated)
	}
}

func TestListFilters(t *testing.T) {
	svc := NewService(NewMemoryRepository(), "+1")
	ctx := context.Background()
	svc.Register(ctx, Registration{Phone: "+1", FirstName: "a", LastName: "b", Country: "kenya"})
	svc.Register(ctx, Registration{Phone: "+2", FirstName: "a", LastName: "b", Country: "kenya"})
	svc.Register(ctx, Registration{Phone: "+3", FirstName: "a", LastName: "b", Country: "somalia"})

	users, err := svc.List(ctx, ListFilter{Country: CountryKenya, ExcludeAdmin: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(users) != 1 || users[0].Phone != "+2" {
		t.Fatalf("unexpected users %+v", users)
	}
}
