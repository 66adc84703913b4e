// Package prompt fills a multi-form view from a terminal. Every field of
// every form is asked in declaration order, the answers are submitted
// through the view as one write request, and fields that come back with
// errors are asked again.
package prompt
