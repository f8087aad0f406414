package enums

import "fmt"

// MembershipAction is the direction a toggle resolved to.
type MembershipAction string

const (
	MembershipActionJoin  MembershipAction = "join"
	MembershipActionLeave MembershipAction = "leave"
)

// String implements fmt.Stringer.
func (m MembershipAction) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MembershipAction.
func (m MembershipAction) IsValid() bool {
	return m == MembershipActionJoin || m == MembershipActionLeave
}

// ParseMembershipAction converts raw input into MembershipAction.
func ParseMembershipAction(value string) (MembershipAction, error) {
	action := MembershipAction(value)
	if !action.IsValid() {
		return "", fmt.Errorf("invalid membership action %q", value)
	}
	return action, nil
}
