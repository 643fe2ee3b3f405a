package entity

import (
	"time"
)

// User is the aggregate root for the account domain. Each user owns
// exactly one Address and one Profile document, written together with
// the user in a single atomic batch at registration.
//
// Password holds a bcrypt hash, never the plaintext.
type User struct {
	ID            string    `json:"-" firestore:"-"`
	Email         string    `json:"email" firestore:"email"`
	Password      string    `json:"password" firestore:"password"`
	IsUserInGroup bool      `json:"isUserInGroup" firestore:"isUserInGroup"`
	IsUserHead    bool      `json:"isUserHead" firestore:"isUserHead"`
	AddressID     string    `json:"addressId" firestore:"addressId"`
	ProfileID     string    `json:"profileId" firestore:"profileId"`
	IsDeleted     bool      `json:"isDeleted" firestore:"isDeleted"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// DeletedUser is the tombstone written to the deleted space when a user
// is soft-deleted. It carries the full user record plus copies of the
// owned address and profile, so the live documents can be removed
// without losing history.
type DeletedUser struct {
	ID            string    `json:"-" firestore:"-"`
	Email         string    `json:"email" firestore:"email"`
	Password      string    `json:"password" firestore:"password"`
	IsUserInGroup bool      `json:"isUserInGroup" firestore:"isUserInGroup"`
	IsUserHead    bool      `json:"isUserHead" firestore:"isUserHead"`
	AddressID     string    `json:"addressId" firestore:"addressId"`
	ProfileID     string    `json:"profileId" firestore:"profileId"`
	IsDeleted     bool      `json:"isDeleted" firestore:"isDeleted"`
	CreatedAt     time.Time `json:"createdAt" firestore:"createdAt"`
	DeletedAt     time.Time `json:"deletedAt" firestore:"deletedAt"`
	Address       *Address  `json:"address,omitempty" firestore:"address,omitempty"`
	Profile       *Profile  `json:"profile,omitempty" firestore:"profile,omitempty"`
}
