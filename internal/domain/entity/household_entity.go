package entity

// Address is the postal address owned by exactly one user. It is
// created in the same atomic batch as its owner and never updated or
// deleted independently.
type Address struct {
	ID         string `json:"-" firestore:"-"`
	StreetName string `json:"streetName" firestore:"streetName"`
	Barangay   string `json:"baranggay" firestore:"baranggay"`
	Town       string `json:"town" firestore:"town"`
	Province   string `json:"province" firestore:"province"`
	ZipCode    string `json:"zipCode" firestore:"zipCode"`
}

// Profile holds the personal details of a user, 1:1 owned with the same
// lifecycle as Address.
type Profile struct {
	ID          string `json:"-" firestore:"-"`
	FirstName   string `json:"firstName" firestore:"firstName"`
	MiddleName  string `json:"middleName" firestore:"middleName"`
	LastName    string `json:"lastName" firestore:"lastName"`
	BirthDate   string `json:"birthDate" firestore:"birthDate"`
	PhoneNumber string `json:"phoneNumber" firestore:"phoneNumber"`
	PhotoURL    string `json:"photoUrl,omitempty" firestore:"photoUrl,omitempty"`
}
