// Package model defines the snapshot types shared across the sync core.
//
// A StateSnapshot is the decoded "current truth" pushed by the server. Each
// snapshot wholesale-replaces the previous one; there is no patch contract.
package model
