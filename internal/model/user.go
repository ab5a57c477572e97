package model

import "time"

// User represents an application user record as stored in the
// `users` table. Users own zero or more tickets and payments.
// Accounts are created either explicitly through registration or
// implicitly during checkout and ticket transfers.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Email        – unique email address (lowercased).
//  Name         – display name collected at signup or checkout.
//  PasswordHash – bcrypt hashed password.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Email        string    // users.email
	Name         string    // users.name
	PasswordHash string    // users.password_hash
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}
