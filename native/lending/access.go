package lending

import "github.com/ethereum/go-ethereum/common"

// AccessControl answers whether a caller holds the administrator role and
// names the administrator account that receives interest and fees. The gate
// is checked by explicit caller parameter at the entry of every privileged
// operation.
type AccessControl interface {
	IsAdmin(caller common.Address) bool
	Admin() common.Address
}

// SingleAdmin is the canonical AccessControl: one administrator identity,
// fixed at construction, with no ownership transfer.
type SingleAdmin struct {
	admin common.Address
}

// NewSingleAdmin constructs an access controller for the given administrator.
func NewSingleAdmin(admin common.Address) SingleAdmin {
	return SingleAdmin{admin: admin}
}

// IsAdmin reports whether caller is the administrator.
func (s SingleAdmin) IsAdmin(caller common.Address) bool {
	return caller == s.admin
}

// Admin returns the administrator identity.
func (s SingleAdmin) Admin() common.Address {
	return s.admin
}
