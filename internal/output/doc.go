// Package output writes build artifacts.
//
// [FileWriter] creates destination directories on demand, leaves files whose
// content is already up to date untouched (so their modification time does
// not change and file watchers stay quiet), and in dry-run mode prints a
// unified diff of every pending change instead of writing.
package output
