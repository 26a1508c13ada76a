// Package metrics computes revenue, customer and payment-health figures from
// the current account and plan state. Every call recomputes from scratch.
//
// Money is reported in major currency units; ratios and percentages are
// rounded to two decimals and are zero whenever their denominator is zero.
//
// Historical MRR (used for the growth rate) re-filters accounts by creation
// date and attributes each to its current plan. Accounts that changed plan in
// between are therefore counted at today's price.
package metrics
