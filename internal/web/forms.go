package web

import (
	"net/http"
	"strconv"

	"github.com/erazemk/armeria/internal/model"
)

func addressFromForm(r *http.Request, prefix string) model.Address {
	return model.Address{
		Municipality: r.PostFormValue(prefix + "municipality"),
		Province:     r.PostFormValue(prefix + "province"),
		StreetType:   r.PostFormValue(prefix + "street_type"),
		Street:       r.PostFormValue(prefix + "street"),
		Number:       r.PostFormValue(prefix + "number"),
	}
}

// storageFromForm reads the storage fields. A ticked storage_same box keeps
// the location tied to the residence; anything else is an explicit edit.
func storageFromForm(r *http.Request) model.StorageLocation {
	kind := r.PostFormValue("storage_kind")
	if r.PostFormValue("storage_same") != "" {
		return model.StorageLocation{Kind: kind, SameAsResidence: true}
	}
	var s model.StorageLocation
	s.Decouple(kind, addressFromForm(r, "storage_"))
	return s
}

// holderFromForm fills h from a holder form. The ID is left alone.
func holderFromForm(r *http.Request, h *model.Holder) {
	f := r.PostFormValue
	h.FirstName = f("first_name")
	h.LastName = f("last_name")
	h.Sex = f("sex")
	h.BirthDate = f("birth_date")
	h.BirthPlace = f("birth_place")
	h.BirthProvince = f("birth_province")
	h.FiscalCode = f("fiscal_code")
	h.FileNumber = f("file_number")
	h.Phone = f("phone")
	h.Residence = addressFromForm(r, "residence_")
	h.License = model.License{
		Type:           f("license_type"),
		Number:         f("license_number"),
		Issuer:         f("license_issuer"),
		IssuerProvince: f("license_issuer_province"),
		IssuedOn:       f("license_issued_on"),
	}
	h.Document = model.IDDocument{
		Type:               f("document_type"),
		Number:             f("document_number"),
		IssuedOn:           f("document_issued_on"),
		Issuer:             f("document_issuer"),
		IssuerMunicipality: f("document_issuer_municipality"),
	}
	h.Storage = storageFromForm(r)
}

// partyFromForm reads a person snapshot whose fields share prefix.
func partyFromForm(r *http.Request, prefix string) model.PartySnapshot {
	f := func(name string) string { return r.PostFormValue(prefix + name) }
	return model.PartySnapshot{
		LastName:      f("last_name"),
		FirstName:     f("first_name"),
		BirthDate:     f("birth_date"),
		BirthPlace:    f("birth_place"),
		BirthProvince: f("birth_province"),
		FiscalCode:    f("fiscal_code"),
		Residence:     addressFromForm(r, prefix+"residence_"),
		Phone:         f("phone"),
	}
}

// weaponFromForm fills w from a weapon form. ID and holder are left alone.
func weaponFromForm(r *http.Request, w *model.Weapon) {
	f := r.PostFormValue
	w.Kind = f("kind")
	w.Brand = f("brand")
	w.Model = f("model")
	w.Type = f("type")
	w.Serial = f("serial")
	w.Caliber = f("caliber")
	w.BarrelSerial = f("barrel_serial")
	w.BarrelLength = f("barrel_length")
	w.BarrelCount = f("barrel_count")
	w.LongShort = f("long_short")
	w.BarrelType = f("barrel_type")
	w.Category = f("category")
	w.Action = f("action")
	w.Loading = f("loading")
	w.ProofMarks = f("proof_marks")
	w.ProductionStatus = f("production_status")
	w.ExOrdDem = f("ex_ord_dem")
	w.AmmoType = f("ammo_type")
	w.AmmoQuantity = f("ammo_quantity")
	w.CaseType = f("case_type")
	w.Notes = f("notes")
	w.Transferor = model.Transferor{
		Kind:          f("transferor_kind"),
		PartySnapshot: partyFromForm(r, "transferor_"),
	}
	w.Storage = storageFromForm(r)
}

func formInt(r *http.Request, name string) int64 {
	v, _ := strconv.ParseInt(r.FormValue(name), 10, 64)
	return v
}
