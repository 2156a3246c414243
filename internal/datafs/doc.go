package datafs

// Package datafs provides safe access helpers for the files gatekeep keeps in
// its data directory.
//
// Layout (default root ~/.ipfs-solana-manager):
//   users.txt                 credential store, one "username:hash" per line
//   WELCOME_CREDENTIALS.txt   one-shot bootstrap credentials
//   logs/                     daily log files
//
// Writers replace files atomically (temp file + rename) and hold the path's
// write lock; readers hold the read lock, so a reader never observes a
// half-written file. Lock files (*.lock) coordinate separate processes.
