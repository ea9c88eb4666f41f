// Package disk provides filesystem-backed implementations of the cache
// package interfaces.
//
// Entries are stored one file per bundle name. Names contain path
// separators and other characters that are unsafe in filenames, so the
// file is addressed by the SHA256 of the name and sharded into
// subdirectories by hash prefix. Writes go to a temporary file that is
// renamed into place, so a crash never leaves a partially written entry.
package disk
