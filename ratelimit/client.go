package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"net/netip"

	"github.com/google/uuid"
)

// ClientIdentifier names the caller for admission control. It is derived
// per connection and never persisted.
type ClientIdentifier struct {
	IP        netip.Addr
	ClientID  string
	UserAgent string
}

// Key returns the partition key for the client:
//
//	"<ip>:<client>"  both IP and client id
//	"ip:<ip>"        IP only
//	"client:<id>"    client id only
//	"ua:<hash>"      user agent only, first 16 hex digits of its SHA-256
//	"anonymous:<id>" nothing known, random per call
func (c ClientIdentifier) Key() string {
	hasIP := c.IP.IsValid()
	switch {
	case hasIP && c.ClientID != "":
		return c.IP.String() + ":" + c.ClientID
	case hasIP:
		return "ip:" + c.IP.String()
	case c.ClientID != "":
		return "client:" + c.ClientID
	case c.UserAgent != "":
		sum := sha256.Sum256([]byte(c.UserAgent))
		return "ua:" + hex.EncodeToString(sum[:])[:16]
	default:
		return "anonymous:" + uuid.NewString()
	}
}
