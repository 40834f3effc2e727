package domain

import "time"

type Address struct {
	ID        string
	UserID    string
	Label     string
	Name      string
	Phone     string
	Street    string
	City      string
	Country   string
	IsDefault bool
	CreatedAt time.Time
}
