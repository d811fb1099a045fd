// Package models contains GORM persistence models for the local sqlite
// store. Models map domain entities to rows and never leak outside the
// persistence package; every repository converts at the boundary with
// ToDomain/FromDomain.
package models
