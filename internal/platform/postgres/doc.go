// Package postgres provides PostgreSQL implementations of the store
// interfaces, accessed through database/sql with the pgx stdlib driver.
package postgres
