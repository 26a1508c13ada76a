package policy

import "github.com/google/uuid"

type AccountRecord struct{}

func canAccount(actor Actor, action Action, _ AccountRecord) bool {
	switch action {
	case Show:
		return actor.Role.Valid()
	case Update:
		return actor.Role.AtLeast(Admin)
	case Destroy, ManageBilling:
		return actor.Role == Owner
	default:
		return false
	}
}

type ClientRecord struct{}

func canClient(actor Actor, action Action, _ ClientRecord) bool {
	switch action {
	case Index, Show:
		return actor.Role.Valid()
	case Create, Update:
		return actor.Role.AtLeast(Member)
	case Destroy:
		return actor.Role.AtLeast(Admin)
	default:
		return false
	}
}

// InvoiceRecord is the state an invoice policy looks at. Estimates use it too.
type InvoiceRecord struct {
	Paid   bool
	Status string
}

func canInvoice(actor Actor, action Action, inv InvoiceRecord) bool {
	switch action {
	case Index, Show, Download:
		return actor.Role.Valid()
	case Create, Send, MarkPaid:
		return actor.Role.AtLeast(Member)
	case Update:
		return actor.Role.AtLeast(Member) && !inv.Paid
	case Destroy:
		return actor.Role.AtLeast(Admin) && !inv.Paid
	default:
		return false
	}
}

// MembershipRecord describes the target membership. OwnerCount is the number
// of owners the account currently has.
type MembershipRecord struct {
	UserID     uuid.UUID
	Role       Role
	OwnerCount int
}

func (m MembershipRecord) soleOwner() bool {
	return m.Role == Owner && m.OwnerCount <= 1
}

func canMembership(actor Actor, action Action, target MembershipRecord) bool {
	if !actor.Role.Valid() {
		return false
	}
	self := actor.UserID != uuid.Nil && actor.UserID == target.UserID

	switch action {
	case Index, Show:
		return true
	case Create:
		return actor.Role.AtLeast(Admin)
	case Leave:
		return self && target.Role != Owner
	case Update, ChangeRole, Destroy:
		if target.soleOwner() {
			return false
		}
		if action == Destroy && self && target.Role != Owner {
			return true
		}
		switch actor.Role {
		case Owner:
			return true
		case Admin:
			return target.Role == Member || target.Role == Guest
		default:
			return false
		}
	default:
		return false
	}
}

func canExport(actor Actor, action Action, _ Headless) bool {
	return action == Export && actor.Role.AtLeast(Admin)
}
