package api

import "time"

// Privacy request statuses.
const (
	StatusPending      = "pending"
	StatusApproved     = "approved"
	StatusDenied       = "denied"
	StatusInProcessing = "in_processing"
	StatusComplete     = "complete"
	StatusPaused       = "paused"
	StatusCanceled     = "canceled"
	StatusError        = "error"
)

// PrivacyRequestStatuses lists every privacy request status.
var PrivacyRequestStatuses = []string{
	StatusPending, StatusApproved, StatusDenied, StatusInProcessing,
	StatusComplete, StatusPaused, StatusCanceled, StatusError,
}

// Identity holds the data subject identifiers of a privacy request.
type Identity struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
}

// Policy is the policy a privacy request executes.
type Policy struct {
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Reviewer is the user who approved or denied a request.
type Reviewer struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PrivacyRequest is a data subject request.
type PrivacyRequest struct {
	ID                  string     `json:"id"`
	Status              string     `json:"status"`
	ExternalID          string     `json:"external_id,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	StartedProcessingAt *time.Time `json:"started_processing_at,omitempty"`
	ReviewedAt          *time.Time `json:"reviewed_at,omitempty"`
	ReviewedBy          string     `json:"reviewed_by,omitempty"`
	Reviewer            *Reviewer  `json:"reviewer,omitempty"`
	DaysLeft            *int       `json:"days_left,omitempty"`
	Identity            Identity   `json:"identity"`
	Policy              Policy     `json:"policy"`
}

// Connection access levels.
const (
	AccessRead  = "read"
	AccessWrite = "write"
)

// Connection is a datastore or SaaS connection configuration.
type Connection struct {
	Key               string     `json:"key"`
	Name              string     `json:"name"`
	Description       string     `json:"description,omitempty"`
	ConnectionType    string     `json:"connection_type"`
	Access            string     `json:"access"`
	Disabled          bool       `json:"disabled"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at,omitempty"`
	LastTestTimestamp *time.Time `json:"last_test_timestamp,omitempty"`
	LastTestSucceeded *bool      `json:"last_test_succeeded,omitempty"`
}

// User is a console operator account.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name,omitempty"`
	LastName  string    `json:"last_name,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectionType describes a connector that can be configured.
type ConnectionType struct {
	Identifier    string `json:"identifier"`
	Type          string `json:"type"`
	HumanReadable string `json:"human_readable"`
	EncodedIcon   string `json:"encoded_icon,omitempty"`
}

// UserCreate is the payload for a new user.
type UserCreate struct {
	Username  string `json:"username" validate:"required,min=1,max=255"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// UserUpdate is the payload for an edited user.
type UserUpdate struct {
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Credentials are exchanged for a bearer token at login.
type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Session is the login response.
type Session struct {
	User  User   `json:"user_data"`
	Token string `json:"-"`
}
