// Package credstore keeps the flat username:hash credential file.
//
// The file lives in the data directory as users.txt:
//
//	# comments are kept in place
//	swiftpanda217:$2b$12$...
//	olduser:5e884898da28047151d0e56f8dc6292773603d0d6aabbd62a11ef721d1542d8
//
// Each record is split on its first colon. Blank lines are ignored, and a
// line starting with '#' is a comment, so no username may start with one.
// Writers take users.txt.lock, re-read the file and replace it atomically.
package credstore
