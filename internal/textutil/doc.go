// Package textutil cleans client-supplied upload names before they reach the
// filesystem or the job record.
package textutil
