// Package userdb reads the user table of a TCRT SQLite database.
//
// The probe only ever opens the database read-only and runs one fixed query
// for active users. The writable side exists for the local stub server and
// for tests, which need a TCRT-shaped users table to log in against.
package userdb
