package model

import (
	"slices"
	"time"
)

// Movement is an entry in the append-only ownership log of a weapon.
type Movement struct {
	ID           int64  `json:"id"`
	WeaponID     int64  `json:"weapon_id"`
	FromHolderID *int64 `json:"from_holder_id,omitempty"`
	ToHolderID   *int64 `json:"to_holder_id,omitempty"`
	Kind         string `json:"kind"`
	Date         string `json:"date"`
	Notes        string `json:"notes,omitempty"`

	Weapon WeaponSnapshot `json:"weapon"`
	From   PartySnapshot  `json:"from"`
	To     PartySnapshot  `json:"to"`

	RecordedAt time.Time `json:"recorded_at"`
	RecordedBy *int64    `json:"recorded_by,omitempty"`

	// Joined field (not always populated).
	RecordedByName string `json:"recorded_by_name,omitempty"`
}

// WeaponSnapshot freezes the identifying attributes of a weapon.
type WeaponSnapshot struct {
	Kind     string `json:"kind"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Serial   string `json:"serial"`
	Caliber  string `json:"caliber"`
	Category string `json:"category"`
}

// Movement kinds.
const (
	MovementAcquisition = "ACQUISIZIONE"
	MovementSale        = "VENDITA"
	MovementGift        = "DONO"
	MovementInheritance = "SUCCESSIONE"
	MovementDeposit     = "DEPOSITO"
	MovementOther       = "ALTRO"
	MovementRemoval     = "ELIMINAZIONE"
)

// MovementDateLayout is the storage format of Movement.Date.
const MovementDateLayout = "2006-01-02"

// TransferKinds lists the kinds an operator can pick for a transfer.
var TransferKinds = []string{
	MovementSale,
	MovementGift,
	MovementInheritance,
	MovementDeposit,
	MovementOther,
}

// IsTransferKind reports whether kind moves a weapon between two holders.
func IsTransferKind(kind string) bool {
	return slices.Contains(TransferKinds, kind)
}
