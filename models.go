package softdelete

import (
	"time"

	"github.com/uptrace/bun"
)

// Logical model names used with the Adapter.
const (
	ModelUser              = "user"
	ModelAccount           = "account"
	ModelSession           = "session"
	ModelBlockedIdentifier = "blockedIdentifier"
)

// Field names used in Where clauses and update maps.
const (
	FieldID             = "id"
	FieldEmail          = "email"
	FieldStatus         = "status"
	FieldDeletedAt      = "deleted_at"
	FieldUserID         = "user_id"
	FieldProviderID     = "provider_id"
	FieldIdentifierHash = "identifier_hash"
	FieldType           = "type"
	FieldExpiresAt      = "expires_at"
	FieldUpdatedAt      = "updated_at"
)

// UserStatus is the lifecycle status of a user.
type UserStatus string

const (
	UserStatusActive  UserStatus = "active"
	UserStatusDeleted UserStatus = "deleted"
)

// ProviderCredential is the provider id of email/password accounts.
const ProviderCredential = "credential"

// IdentifierTypeEmail is the only BlockedIdentifier type in use.
const IdentifierTypeEmail = "email"

// User is the host user row. The plugin only mutates Status and DeletedAt.
type User struct {
	bun.BaseModel `bun:"table:users,alias:usr"`
	ID            string     `bun:"id,pk" json:"id"`
	Email         string     `bun:"email,notnull,unique" json:"email"`
	Name          string     `bun:"name" json:"name,omitempty"`
	Status        UserStatus `bun:"status,notnull,nullzero,default:'active'" json:"status"`
	DeletedAt     *time.Time `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
	UpdatedAt     *time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at,omitempty"`
}

// EnsureStatus defaults an empty status to active.
func (u *User) EnsureStatus() {
	if u != nil && u.Status == "" {
		u.Status = UserStatusActive
	}
}

// IsDeleted reports whether the user is soft deleted.
func (u *User) IsDeleted() bool {
	return u != nil && u.Status == UserStatusDeleted
}

// IsActive reports whether the user is active.
func (u *User) IsActive() bool {
	if u == nil {
		return false
	}
	u.EnsureStatus()
	return u.Status == UserStatusActive
}

// Account links a user to an auth provider. Credential accounts hold the
// password hash.
type Account struct {
	bun.BaseModel `bun:"table:accounts,alias:acc"`
	ID            string     `bun:"id,pk" json:"id"`
	UserID        string     `bun:"user_id,notnull" json:"user_id"`
	ProviderID    string     `bun:"provider_id,notnull" json:"provider_id"`
	AccountID     string     `bun:"account_id" json:"account_id,omitempty"`
	Password      string     `bun:"password" json:"-"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// HasPassword reports whether the account stores a password hash.
func (a *Account) HasPassword() bool {
	return a != nil && a.Password != ""
}

// Session is a host session row.
type Session struct {
	bun.BaseModel `bun:"table:sessions,alias:ses"`
	ID            string     `bun:"id,pk" json:"id"`
	UserID        string     `bun:"user_id,notnull" json:"user_id"`
	Token         string     `bun:"token,notnull,unique" json:"-"`
	ExpiresAt     time.Time  `bun:"expires_at,notnull" json:"expires_at"`
	CreatedAt     *time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at,omitempty"`
}

// BlockedIdentifier prevents re-registration of a hashed identifier until
// ExpiresAt. A nil ExpiresAt never expires.
type BlockedIdentifier struct {
	bun.BaseModel  `bun:"table:blocked_identifiers,alias:bid"`
	ID             string     `bun:"id,pk" json:"id"`
	IdentifierHash string     `bun:"identifier_hash,notnull" json:"identifier_hash"`
	Type           string     `bun:"type,notnull" json:"type"`
	ExpiresAt      *time.Time `bun:"expires_at,nullzero" json:"expires_at,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,notnull" json:"created_at"`
}

// IsExpired reports whether the block has lapsed at now.
func (b *BlockedIdentifier) IsExpired(now time.Time) bool {
	if b == nil || b.ExpiresAt == nil {
		return false
	}
	return !b.ExpiresAt.After(now)
}

// SchemaField describes a column the plugin needs from the host.
type SchemaField struct {
	Name     string
	Type     string
	Required bool
	Default  string
}

// SchemaTable describes the schema additions for a model.
type SchemaTable struct {
	Model  string
	Fields []SchemaField
}

// Schema lists the schema additions required by the plugin.
func Schema() []SchemaTable {
	return []SchemaTable{
		{
			Model: ModelUser,
			Fields: []SchemaField{
				{Name: FieldStatus, Type: "string", Default: string(UserStatusActive)},
				{Name: FieldDeletedAt, Type: "date"},
			},
		},
		{
			Model: ModelBlockedIdentifier,
			Fields: []SchemaField{
				{Name: FieldIdentifierHash, Type: "string", Required: true},
				{Name: FieldType, Type: "string", Required: true},
				{Name: FieldExpiresAt, Type: "date"},
				{Name: "created_at", Type: "date", Required: true},
			},
		},
	}
}
