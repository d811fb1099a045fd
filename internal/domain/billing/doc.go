// Package billing holds the invoice aggregate. An invoice is born with
// a number drawn from a server-reserved identifier range and keeps that
// number forever; issuance, the range advance, and the allocation are
// committed in one local transaction so a crash can never leave an
// invoice without a reservation or a reservation without an invoice.
package billing
