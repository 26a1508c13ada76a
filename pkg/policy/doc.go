// Package policy decides what a member of an account may do.
//
// Each resource has its own Policy implementation evaluated from the actor's
// role and the target record's state. Evaluation is pure: no storage, no
// network. Handlers load the record, build the record view and call Authorize.
//
//	err := policy.Authorize(policy.Invoices, actor, policy.Update, policy.InvoiceRecord{Paid: inv.Paid})
//	if errors.Is(err, policy.ErrForbidden) { ... }
package policy
