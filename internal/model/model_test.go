package model

import "testing"

func TestHolderNormalizeUppercases(t *testing.T) {
	h := Holder{
		FirstName: " mario ",
		LastName:  "de  luca",
		Residence: Address{Municipality: "pisa", StreetType: "via", Street: "roma", Number: "3/a"},
		License:   License{Type: "porto di fucile"},
	}
	h.Normalize()

	if h.FirstName != "MARIO" || h.LastName != "DE LUCA" {
		t.Errorf("unexpected name %q %q", h.FirstName, h.LastName)
	}
	if h.Residence.Street != "ROMA" || h.Residence.Number != "3/A" {
		t.Errorf("unexpected residence %+v", h.Residence)
	}
	if h.License.Type != "PORTO DI FUCILE" {
		t.Errorf("unexpected license type %q", h.License.Type)
	}
}

func TestStorageFollowsResidence(t *testing.T) {
	h := Holder{
		Residence: Address{Municipality: "PISA", Province: "PI", StreetType: "VIA", Street: "ROMA", Number: "1"},
		Storage:   StorageLocation{SameAsResidence: true},
	}
	h.Normalize()
	if h.Storage.Address != h.Residence {
		t.Fatalf("expected storage to mirror residence, got %+v", h.Storage.Address)
	}
	if h.Storage.Kind != StorageKindResidence {
		t.Errorf("expected kind %q, got %q", StorageKindResidence, h.Storage.Kind)
	}

	// Residence edits keep propagating while coupled.
	h.Residence.Street = "GARIBALDI"
	h.Normalize()
	if h.Storage.Street != "GARIBALDI" {
		t.Errorf("expected storage street to follow residence, got %q", h.Storage.Street)
	}

	// Once edited on its own, the location stops following.
	h.Storage.Decouple(StorageKindOther, Address{Municipality: "LUCCA", Street: "MURA"})
	h.Residence.Street = "MAZZINI"
	h.Normalize()
	if h.Storage.Municipality != "LUCCA" || h.Storage.Street != "MURA" {
		t.Errorf("expected decoupled storage to stay, got %+v", h.Storage.Address)
	}
}

func TestAddressLine(t *testing.T) {
	tests := []struct {
		addr Address
		want string
	}{
		{Address{StreetType: "VIA", Street: "ROMA", Number: "1"}, "VIA ROMA 1"},
		{Address{StreetType: "PIAZZA", Street: "DUOMO"}, "PIAZZA DUOMO"},
		{Address{Street: "ROMA", Number: "1"}, ""},
		{Address{StreetType: "VIA"}, ""},
	}
	for _, tt := range tests {
		if got := tt.addr.Line(); got != tt.want {
			t.Errorf("Line(%+v) = %q, want %q", tt.addr, got, tt.want)
		}
	}
}

func TestIsTransferKind(t *testing.T) {
	for _, k := range TransferKinds {
		if !IsTransferKind(k) {
			t.Errorf("expected %q to be a transfer kind", k)
		}
	}
	if IsTransferKind(MovementRemoval) || IsTransferKind(MovementAcquisition) {
		t.Error("removal and acquisition are not operator transfers")
	}
}

func TestWeaponDescription(t *testing.T) {
	w := Weapon{Kind: "PISTOLA", Brand: "BERETTA", Model: "92FS"}
	if got := w.Description(); got != "PISTOLA BERETTA 92FS" {
		t.Errorf("Description = %q", got)
	}
	w = Weapon{Brand: "BERETTA"}
	if got := w.Description(); got != "BERETTA" {
		t.Errorf("Description = %q", got)
	}
}
