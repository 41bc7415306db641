package models

import (
	"fmt"
	"strings"
)

// IDPolicy decides whether a deleted id may be claimed again by an explicit create.
// Generated ids are never handed out twice under either policy.
type IDPolicy string

const (
	// IDPolicyReuse lets an explicit create reclaim a deleted id.
	IDPolicyReuse IDPolicy = "reuse"
	// IDPolicyRetire rejects explicit creates for any id that was ever deleted.
	IDPolicyRetire IDPolicy = "retire"
)

// ParseIDPolicy defaults to IDPolicyReuse for an empty value.
func ParseIDPolicy(raw string) (IDPolicy, error) {
	switch IDPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case "", IDPolicyReuse:
		return IDPolicyReuse, nil
	case IDPolicyRetire:
		return IDPolicyRetire, nil
	default:
		return "", fmt.Errorf("unknown id policy %q", raw)
	}
}

// RetiresDeletedIDs reports whether deletes permanently burn the id.
func (p IDPolicy) RetiresDeletedIDs() bool {
	return p == IDPolicyRetire
}
