// Package directory holds the emulator's users and client applications.
//
// Both registries are JSON arrays on disk (users.json and
// applications.json under the data directory). Files are validated against
// embedded JSON Schemas on load and rewritten atomically on Add. A missing
// file is seeded with DefaultUsers or DefaultApplications.
//
// Passwords are stored as bcrypt hashes only.
package directory
