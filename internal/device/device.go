// Package device holds the peer device data model shared by the registry,
// session server, and discovery responder.
package device

import (
	"fmt"
	"strconv"

	"github.com/dcnnt/dcnntd/internal/cryptox"
)

// Role is a device's declared role in the network.
type Role string

const (
	RoleClient Role = "client"
	RoleServer Role = "server"
	RoleProxy  Role = "proxy"
)

// Device is a known peer (or the local server identity) plus the derived
// per-direction keys used once both sides' passwords are known.
type Device struct {
	UIN         uint32 `json:"uin"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Role        Role   `json:"role"`
	Password    string `json:"password,omitempty"`
	IP          string `json:"ip,omitempty"`

	// KeyRecv/KeySend are derived, never persisted directly with a
	// different name; they are recomputed from Password on every load.
	KeyRecv []byte `json:"-"`
	KeySend []byte `json:"-"`
}

// concatDecimal renders uins in base 10 with no separator and appends the
// password strings verbatim, matching spec §3's concat_as_decimal.
func concatDecimal(uinA, uinB uint32, passA, passB string) string {
	return strconv.FormatUint(uint64(uinA), 10) + strconv.FormatUint(uint64(uinB), 10) + passA + passB
}

// DeriveKeys computes KeyRecv and KeySend for peer D given the server
// identity S, per spec §3:
//
//	key_recv(D) = SHA256(concat(S.uin, D.uin, S.password, D.password))
//	key_send(D) = SHA256(concat(D.uin, S.uin, D.password, S.password))
//
// Keys are only derived when both passwords are non-empty; otherwise both
// are cleared.
func (d *Device) DeriveKeys(server *Device) {
	if server.Password == "" || d.Password == "" {
		d.KeyRecv = nil
		d.KeySend = nil
		return
	}

	recv := cryptox.DeriveKey(concatDecimal(server.UIN, d.UIN, server.Password, d.Password))
	send := cryptox.DeriveKey(concatDecimal(d.UIN, server.UIN, d.Password, server.Password))
	d.KeyRecv = recv[:]
	d.KeySend = send[:]
}

// String implements fmt.Stringer for log-friendly device identification.
func (d *Device) String() string {
	return fmt.Sprintf("Device{uin=%d name=%q role=%s}", d.UIN, d.Name, d.Role)
}

// ValidRole reports whether r is one of the three recognized roles.
func ValidRole(r string) bool {
	switch Role(r) {
	case RoleClient, RoleServer, RoleProxy:
		return true
	default:
		return false
	}
}
