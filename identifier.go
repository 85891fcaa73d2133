package softdelete

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const secondaryKeyPrefix = "blocked-identifier"

// NormalizeEmail lower-cases and trims an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// HashIdentifier returns the hex SHA-256 digest of the normalized email.
func HashIdentifier(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// SecondaryKey returns the namespaced secondary storage key for a hash.
func SecondaryKey(identifierType, hash string) string {
	return secondaryKeyPrefix + ":" + identifierType + ":" + hash
}

// blockedIdentifierID derives a stable id from the hash so concurrent
// creates for the same identifier collide on the primary key.
func blockedIdentifierID(identifierType, hash string) string {
	id, err := hashid.NewUUID(identifierType + ":" + hash)
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func defaultIDGenerator(string) string {
	return uuid.NewString()
}

func maskEmail(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local[:1] + "***" + domain
	}
	return local[:1] + "***" + local[len(local)-1:] + domain
}
