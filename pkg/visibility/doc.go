// Package visibility decides whether a principal may view a group's layouts.
// The decision procedure is an ordered table of named rules evaluated
// first-match: each rule may allow, deny, or pass to the next. Keeping the
// rules as data makes the precedence auditable and lets each rule be tested
// in isolation.
package visibility
