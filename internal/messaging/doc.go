// Package messaging provides an in-process publish/subscribe dispatcher used
// to announce catalog changes such as newly created categories.
package messaging
