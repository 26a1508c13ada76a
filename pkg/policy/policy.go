package policy

// Policy evaluates one resource's capabilities.
type Policy[T any] interface {
	Can(actor Actor, action Action, record T) bool
}

// Func adapts a function to Policy.
type Func[T any] func(actor Actor, action Action, record T) bool

func (f Func[T]) Can(actor Actor, action Action, record T) bool {
	return f(actor, action, record)
}

// Authorize returns ErrForbidden when p denies action.
func Authorize[T any](p Policy[T], actor Actor, action Action, record T) error {
	if !p.Can(actor, action, record) {
		return ErrForbidden
	}
	return nil
}

// Headless is the record type of actions without a backing record.
type Headless struct{}

var (
	Accounts    Policy[AccountRecord]    = Func[AccountRecord](canAccount)
	Clients     Policy[ClientRecord]     = Func[ClientRecord](canClient)
	Invoices    Policy[InvoiceRecord]    = Func[InvoiceRecord](canInvoice)
	Memberships Policy[MembershipRecord] = Func[MembershipRecord](canMembership)
	Exports     Policy[Headless]         = Func[Headless](canExport)
)
