// Package notifications pushes operator alerts to ntfy.
//
// Two events are published: a request that exhausted its attempt budget and a
// finished batch run. Each can be switched off in the [notifications] config
// section, and the whole package degrades to a no-op when no topic is set.
package notifications
