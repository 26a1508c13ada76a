// Package subscription applies billing-processor webhook events to local
// account and invoice state.
//
// Parsers turn a signed provider request (Stripe or Paddle) into a
// provider-neutral Event. The Reconciler applies the event:
//
//   - subscription.created / subscription.updated set the account's plan,
//     status and trial end;
//   - subscription.deleted downgrades the account to the free plan;
//   - payment.completed marks the referenced invoice paid, once.
//
// Events that do not concern this service (unknown customer, unknown price,
// missing invoice reference) are logged and acknowledged. Store faults are
// returned so the processor redelivers. Updates are last-write-wins: events
// for the same account may arrive out of order.
package subscription
