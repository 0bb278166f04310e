// Package progress holds the state shared between the install worker and
// the foreground that redraws the status panel.
//
// There is a single writer (the worker) and a single reader class (the
// poll tick). Each field is an independent atomic value: readers may see a
// fraction from one update and a status from the next, which only delays
// what the panel shows by one poll interval.
package progress
