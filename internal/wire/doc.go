// Package wire defines the JSON frame envelope exchanged between the console
// and the gateway, plus the type discriminators and topic names both ends use.
package wire
