package models

import "time"

// Client is a workshop customer.
type Client struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Vehicle belongs to a client. Plate doubles as the storage prefix for its photos.
type Vehicle struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"clientId"`
	Plate     string    `json:"plate"`
	Make      string    `json:"make,omitempty"`
	Model     string    `json:"model,omitempty"`
	Year      int       `json:"year,omitempty"`
	Photos    []Photo   `json:"photos,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Category is a predefined group of checklist steps.
type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	SubItems    []string  `json:"subItems"`
	Source      string    `json:"source,omitempty"`
	Checksum    string    `json:"checksum,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
