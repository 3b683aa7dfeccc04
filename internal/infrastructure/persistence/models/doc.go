// Package models contains GORM persistence models. They are kept apart from
// domain types so the domain layer carries no ORM tags; each model has
// ToDomain and <Model>FromDomain mappers used by the repositories.
package models
