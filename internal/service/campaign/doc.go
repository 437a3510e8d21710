// Package campaign implements campaign lifecycle management.
//
// The service layer contains all business logic for creating, editing,
// and cancelling campaigns and for attaching recipient lists. Starting,
// pausing, and resuming a send belongs to the dispatch package; this
// package only owns the states a campaign can rest in.
//
// Repository implementations live in repository/postgres.
package campaign
