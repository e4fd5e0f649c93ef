package models

// User is the submitter of a pass, as stored in the "users" table and as
// rendered inside a PassDocument. Email is the natural key.
type User struct {
	Email string `json:"email"`
	Fam   string `json:"fam"`
	Name  string `json:"name"`
	Otc   string `json:"otc"`
	Phone string `json:"phone"`
}

// UserInput is the "user" object of a submission. Fields are pointers so
// that an absent key reaches the store as NULL; otc is the only optional one.
type UserInput struct {
	Email *string `json:"email"`
	Fam   *string `json:"fam"`
	Name  *string `json:"name"`
	Otc   *string `json:"otc"`
	Phone *string `json:"phone"`
}

// UpsertUserParams holds the values written by the users upsert.
type UpsertUserParams struct {
	Email *string
	Fam   *string
	Name  *string
	Otc   string
	Phone *string
}

// Params converts the input into upsert parameters, defaulting otc to "".
func (u *UserInput) Params() UpsertUserParams {
	p := UpsertUserParams{Email: u.Email, Fam: u.Fam, Name: u.Name, Phone: u.Phone}
	if u.Otc != nil {
		p.Otc = *u.Otc
	}
	return p
}
