package model

// Municipality is an Italian comune.
type Municipality struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Province      string `json:"province"`
	CadastralCode string `json:"cadastral_code"`
	Region        string `json:"region,omitempty"`
}

// Province is identified by its two-letter sigla.
type Province struct {
	Code   string `json:"code"`
	Name   string `json:"name,omitempty"`
	Region string `json:"region,omitempty"`
}

// Brand is a weapon manufacturer.
type Brand struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
