package models

import "strings"

// Profile is the account's contact details and shipping address.
type Profile struct {
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	PhoneNumber   string `json:"phone_number"`
	StreetAddress string `json:"street_address"`
	City          string `json:"city"`
	Zipcode       string `json:"zipcode"`
	Country       string `json:"country"`
}

// UpdateProfileRequest is a partial update. Absent fields keep their value.
type UpdateProfileRequest struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Email         *string `json:"email"`
	PhoneNumber   *string `json:"phone_number"`
	StreetAddress *string `json:"street_address"`
	City          *string `json:"city"`
	Zipcode       *string `json:"zipcode"`
	Country       *string `json:"country"`
}

// Apply copies every present field onto p.
func (r UpdateProfileRequest) Apply(p *Profile) {
	set(&p.FirstName, r.FirstName)
	set(&p.LastName, r.LastName)
	set(&p.Email, r.Email)
	set(&p.PhoneNumber, r.PhoneNumber)
	set(&p.StreetAddress, r.StreetAddress)
	set(&p.City, r.City)
	set(&p.Zipcode, r.Zipcode)
	set(&p.Country, r.Country)
}

func set(dst, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}
